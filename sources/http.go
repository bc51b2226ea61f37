package sources

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"path"

	"github.com/pogilon/DAISY-BP/daisy"
	"golang.org/x/xerrors"
)

const userAgent = "DAISY-BP"

//HTTPSource fetches an image from each url
type HTTPSource struct {
	urls   []string
	Client *http.Client
}

func NewHTTPSource(urls ...string) *HTTPSource {
	return &HTTPSource{urls: urls, Client: &http.Client{}}
}

func decodeMessage(resp *http.Response) (msg string, err error) {
	buf, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return
	}
	var data struct {
		Message string `json:"message"`
	}
	if err = json.Unmarshal(buf, &data); err == nil {
		msg = data.Message
	}
	return
}

//Next downloads and decodes the next image
func (s *HTTPSource) Next(ctx context.Context) (*Frame, error) {
	if len(s.urls) == 0 {
		return nil, io.EOF
	}
	imageURL := s.urls[0]
	s.urls = s.urls[1:]

	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("User-Agent", userAgent)
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, errd := decodeMessage(resp)
		if errd != nil || msg == "" {
			return nil, xerrors.Errorf("%s: status code %d", imageURL, resp.StatusCode)
		}
		return nil, xerrors.Errorf("%s: status code %d, message: %s", imageURL, resp.StatusCode, msg)
	}

	img, err := daisy.Decode(resp.Body)
	if err != nil {
		return nil, wrapErr(imageURL, err)
	}
	return &Frame{Name: urlFrameName(imageURL), Image: img}, nil
}

func urlFrameName(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return imageURL
	}
	if u.Path == "" || u.Path == "/" {
		return u.Hostname()
	}
	return frameName(path.Base(u.Path))
}
