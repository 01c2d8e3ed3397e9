package invoke

// Entry is a lowered program: it takes the program's incoming arguments
// and returns its result.
type Entry func(args []any) (any, error)

// Lowerer compiles programs into entries. Implementations must be safe
// for concurrent use and may be called more than once for a program.
type Lowerer interface {
	Lower(p *Program) (Entry, error)
}

// ClosureLowerer lowers a program into a chain of Go closures with
// operand slots resolved ahead of time.
type ClosureLowerer struct{}

type closureStep struct {
	impl  funcImpl
	name  *Name
	slots []int
	out   int
}

// Lower implements Lowerer.
func (ClosureLowerer) Lower(p *Program) (Entry, error) {
	steps := make([]closureStep, 0, len(p.names)-p.arity)
	for i := p.arity; i < len(p.names); i++ {
		n := &p.names[i]
		slots := make([]int, len(n.args))
		for j, o := range n.args {
			slots[j] = o.ref
		}
		steps = append(steps, closureStep{impl: funcs[n.fn], name: n, slots: slots, out: i})
	}

	size := len(p.names)
	arity := p.arity
	return func(args []any) (any, error) {
		frame := make([]any, size)
		copy(frame, args[:arity])
		for k := range steps {
			s := &steps[k]
			vals := make([]any, len(s.slots))
			for j, ref := range s.slots {
				if ref < 0 {
					vals[j] = s.name.args[j].value
				} else {
					vals[j] = frame[ref]
				}
			}
			v, err := s.impl(s.name, vals)
			if err != nil {
				return nil, err
			}
			frame[s.out] = v
		}
		return frame[size-1], nil
	}, nil
}
