package manifest

import "gopkg.in/yaml.v3"

// The UnmarshalYAML methods below record the line each declaration starts on
// so that diagnostics can point back into the manifest.

func (t *Type) UnmarshalYAML(n *yaml.Node) error {
	type plain Type
	if err := n.Decode((*plain)(t)); err != nil {
		return err
	}
	t.Line = n.Line
	return nil
}

func (m *Module) UnmarshalYAML(n *yaml.Node) error {
	type plain Module
	if err := n.Decode((*plain)(m)); err != nil {
		return err
	}
	m.Line = n.Line
	return nil
}

func (r *Registration) UnmarshalYAML(n *yaml.Node) error {
	// A bare string is shorthand for a registration with default scope.
	if n.Kind == yaml.ScalarNode {
		r.Type, r.Line = n.Value, n.Line
		return nil
	}
	type plain Registration
	if err := n.Decode((*plain)(r)); err != nil {
		return err
	}
	r.Line = n.Line
	return nil
}

func (f *FactoryDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain FactoryDecl
	if err := n.Decode((*plain)(f)); err != nil {
		return err
	}
	f.Line = n.Line
	return nil
}

func (i *Import) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		i.Module, i.Line = n.Value, n.Line
		return nil
	}
	type plain Import
	if err := n.Decode((*plain)(i)); err != nil {
		return err
	}
	i.Line = n.Line
	return nil
}

func (f *FactoryMethod) UnmarshalYAML(n *yaml.Node) error {
	type plain FactoryMethod
	if err := n.Decode((*plain)(f)); err != nil {
		return err
	}
	f.Line = n.Line
	return nil
}

func (d *Decorator) UnmarshalYAML(n *yaml.Node) error {
	type plain Decorator
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	d.Line = n.Line
	return nil
}

func (d *DecoratorMethod) UnmarshalYAML(n *yaml.Node) error {
	type plain DecoratorMethod
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	d.Line = n.Line
	return nil
}

func (i *Instance) UnmarshalYAML(n *yaml.Node) error {
	type plain Instance
	if err := n.Decode((*plain)(i)); err != nil {
		return err
	}
	i.Line = n.Line
	return nil
}

func (r *Root) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		r.Type, r.Line = n.Value, n.Line
		return nil
	}
	type plain Root
	if err := n.Decode((*plain)(r)); err != nil {
		return err
	}
	r.Line = n.Line
	return nil
}
