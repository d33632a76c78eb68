package llm

import (
	"errors"
	"testing"

	"quorum-ai/internal/domain"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ClassLocal, &flakyProvider{name: "ollama"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	p, err := reg.Get("ollama")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Name = %q", p.Name())
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ClassLocal, &flakyProvider{name: "ollama"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// Names are unique even across classes.
	err := reg.Register(ClassRemote, &flakyProvider{name: "ollama"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("missing")
	if !errors.Is(err, domain.ErrProviderNotFound) {
		t.Errorf("err = %v, want ErrProviderNotFound", err)
	}
}

func TestRegistryClassDefaults(t *testing.T) {
	reg := NewRegistry()
	reg.Register(ClassLocal, &flakyProvider{name: "ollama"})
	reg.Register(ClassRemote, &flakyProvider{name: "openai"})
	reg.Register(ClassRemote, &flakyProvider{name: "openai-backup"})

	local, err := reg.Default(ClassLocal)
	if err != nil {
		t.Fatalf("Default(local): %v", err)
	}
	if local.Name() != "ollama" {
		t.Errorf("local default = %q", local.Name())
	}

	// First registration wins within a class.
	remote, err := reg.Default(ClassRemote)
	if err != nil {
		t.Fatalf("Default(remote): %v", err)
	}
	if remote.Name() != "openai" {
		t.Errorf("remote default = %q", remote.Name())
	}
}

func TestRegistryDefaultMissingClass(t *testing.T) {
	reg := NewRegistry()
	reg.Register(ClassLocal, &flakyProvider{name: "ollama"})

	_, err := reg.Default(ClassRemote)
	if !errors.Is(err, domain.ErrProviderNotFound) {
		t.Errorf("err = %v, want ErrProviderNotFound", err)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(ClassRemote, &flakyProvider{name: "openai"})
	reg.Register(ClassLocal, &flakyProvider{name: "ollama"})

	names := reg.Names()
	if len(names) != 2 || names[0] != "ollama" || names[1] != "openai" {
		t.Errorf("Names = %v", names)
	}
}
