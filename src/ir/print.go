package ir

import "fmt"

// String renders the block's label and instructions. This is an internal
// debug dump used by tests to assert on structural shape (e.g. scenario
// tests in pipeline_test.go); it is not the concrete textual IR printer,
// which spec §1/§6 names as an external collaborator.
func (b *Block) String() string {
	s := b.Name() + ":\n"
	for _, inst := range b.Instrs {
		s += "  " + inst.String() + "\n"
	}
	return s
}

// String renders the function signature, then each block in order.
func (f *Function) String() string {
	s := fmt.Sprintf("function %s%s {\n", f.name, f.FuncType())
	for _, b := range f.Blocks {
		s += b.String()
	}
	return s + "}\n"
}

// String renders the module's globals then its functions.
func (m *Module) String() string {
	s := ""
	for _, g := range m.Globals {
		s += fmt.Sprintf("@%s : %s\n", g.name, g.elemType)
	}
	for _, f := range m.Functions {
		s += f.String()
	}
	return s
}
