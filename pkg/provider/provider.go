package provider

import "fmt"

type Info struct {
	Name    string
	Version string
	Author  string
}

func (i Info) String() string {
	if i.Version == "" {
		return i.Name
	}
	return fmt.Sprintf("%s/%s", i.Name, i.Version)
}

type Provider interface {
	Info() Info
}
