package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/kproc/service/file"
	"gopkg.in/yaml.v3"
)

// Image is an executable header as stored in the file system.
type Image struct {
	Entry uint32            `yaml:"entry"`
	Text  map[string]uint32 `yaml:"text"`
}

// Symbol returns the address of name within the image.
func (i *Image) Symbol(name string) uint32 {
	if i == nil {
		return 0
	}
	return i.Text[name]
}

// Program is an executable before linking.
type Program struct {
	Entry   string
	Symbols map[string]Routine
}

// Link links the program's routines and writes its image to path.
func (k *Kernel) Link(ctx context.Context, path string, program Program) error {
	if _, ok := program.Symbols[program.Entry]; !ok {
		return fmt.Errorf("link %s: entry %q: %w", path, program.Entry, ErrInvalidArgument)
	}
	image := &Image{Text: map[string]uint32{}}
	for name, fn := range program.Symbols {
		image.Text[name] = k.text.Link(path+":"+name, fn)
	}
	image.Entry = image.Text[program.Entry]
	data, err := yaml.Marshal(image)
	if err != nil {
		return fmt.Errorf("link %s: %w", path, err)
	}
	return k.files.WriteFile(ctx, path, data)
}

func (k *Kernel) loadImage(ctx context.Context, path string) (*Image, error) {
	data, err := k.files.ReadFile(ctx, path)
	if err != nil {
		if errors.Is(err, file.ErrNotFound) {
			return nil, fmt.Errorf("exec %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("exec %s: %w", path, err)
	}
	image := &Image{}
	if err := yaml.Unmarshal(data, image); err != nil {
		return nil, fmt.Errorf("exec %s: bad image: %w", path, err)
	}
	if image.Entry == 0 {
		return nil, fmt.Errorf("exec %s: no entry: %w", path, ErrInvalidArgument)
	}
	return image, nil
}

// InitProgram returns the default init: it reaps children forever.
func InitProgram() Program {
	return Program{
		Entry: "main",
		Symbols: map[string]Routine{
			"main": func(u *User, _ uint32) {
				for {
					if _, err := u.Wait(); errors.Is(err, ErrNoChildren) {
						_ = u.Sleep(1)
					}
				}
			},
		},
	}
}
