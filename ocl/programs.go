package ocl

import (
	"github.com/dchest/blake2b"
	"github.com/robvanmieghem/go-opencl/cl"
	"golang.org/x/xerrors"
)

//PrimaryProgram is the slot of Constructs.Program, auxiliary programs use slots 0..ProgramsCount-1
const PrimaryProgram = -1

//ProgramSource is the opencl C source of a program together with its build options
type ProgramSource struct {
	Name    string
	Source  string
	Options string
}

type programKey [32]byte

func (c *Constructs) programKey(src ProgramSource) programKey {
	buf := make([]byte, 0, len(c.DeviceInfo.Name)+len(src.Options)+len(src.Source)+2)
	buf = append(buf, c.DeviceInfo.Name...)
	buf = append(buf, 0)
	buf = append(buf, src.Options...)
	buf = append(buf, 0)
	buf = append(buf, src.Source...)
	return blake2b.Sum256(buf)
}

//LoadProgram installs a compiled version of src in the given slot.
// Programs are cached by device, options and source, a cached program is installed without rebuilding.
func (c *Constructs) LoadProgram(slot int, src ProgramSource) (*cl.Program, error) {
	if !c.built {
		return nil, ErrNotBuilt
	}
	if slot < PrimaryProgram || slot >= c.ProgramsCount {
		return nil, xerrors.Errorf("program slot %d: %w", slot, ErrSlotOutOfRange)
	}

	key := c.programKey(src)
	var program *cl.Program
	if cached, ok := c.programs.Get(key); ok {
		program = cached.(*cl.Program)
	} else {
		var err error
		program, err = c.buildProgram(src)
		if err != nil {
			return nil, err
		}
		c.programs.Add(key, program)
	}
	c.installProgram(slot, program)
	return program, nil
}

func (c *Constructs) buildProgram(src ProgramSource) (*cl.Program, error) {
	program, err := c.Context.CreateProgramWithSource([]string{src.Source})
	if err != nil {
		return nil, wrapErr("create program "+src.Name, err)
	}
	if err = program.BuildProgram([]*cl.Device{c.Device}, src.Options); err != nil {
		program.Release()
		var buildErr cl.BuildError
		if xerrors.As(err, &buildErr) {
			return nil, xerrors.Errorf("build program %s on %s: %w", src.Name, c.DeviceInfo.Name, buildErr)
		}
		return nil, wrapErr("build program "+src.Name, err)
	}
	return program, nil
}

func (c *Constructs) installProgram(slot int, program *cl.Program) {
	var previous *cl.Program
	if slot == PrimaryProgram {
		previous, c.Program = c.Program, program
	} else {
		previous, c.Programs[slot] = c.Programs[slot], program
	}
	if previous != nil && previous != program && c.orphans[previous] && !c.programHeld(previous) {
		previous.Release()
		delete(c.orphans, previous)
	}
}

func (c *Constructs) programHeld(program *cl.Program) bool {
	if c.Program == program {
		return true
	}
	for _, p := range c.Programs {
		if p == program {
			return true
		}
	}
	return false
}

// onProgramEvicted releases programs dropped from the cache, unless a slot still uses them.
// Those become orphans and are released once no slot refers to them anymore.
func (c *Constructs) onProgramEvicted(_ interface{}, value interface{}) {
	program := value.(*cl.Program)
	if c.programHeld(program) {
		if c.orphans == nil {
			c.orphans = make(map[*cl.Program]bool)
		}
		c.orphans[program] = true
		return
	}
	program.Release()
}

//CreateKernel creates the named kernel from program
func (c *Constructs) CreateKernel(program *cl.Program, name string) (*cl.Kernel, error) {
	if !c.built {
		return nil, ErrNotBuilt
	}
	kernel, err := program.CreateKernel(name)
	if err != nil {
		return nil, wrapErr("create kernel "+name, err)
	}
	return kernel, nil
}

//CachedPrograms returns the number of compiled programs currently cached
func (c *Constructs) CachedPrograms() int {
	if c.programs == nil {
		return 0
	}
	return c.programs.Len()
}
