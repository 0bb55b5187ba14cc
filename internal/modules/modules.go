// ABOUTME: Module profile loading - built-in behavior profiles plus TOML-defined ones
// ABOUTME: Seeds the modules table at startup so chats can reference profiles by name

package modules

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/morphlabs/morph-gateway/internal/store"
)

// Profile describes a module as declared in a TOML file.
type Profile struct {
	Name   string   `toml:"name"`
	Title  string   `toml:"title"`
	Tags   []string `toml:"tags"`
	Prompt string   `toml:"prompt"`
}

// profileFile is the top-level TOML document: one or more [[module]] tables.
type profileFile struct {
	Modules []Profile `toml:"module"`
}

// Builtin returns the profiles that ship with the gateway.
func Builtin() []Profile {
	return []Profile{
		{Name: "physics", Title: "Physics Engine", Tags: []string{"Gravity", "Velocity", "Collision"}},
		{Name: "sandbox", Title: "Code Sandbox", Tags: []string{"Python", "Rust", "Real-time"}},
		{Name: "history", Title: "History Diver", Tags: []string{"Temporal", "Causality", "Maps"}},
		{Name: "logic", Title: "Logic Gates", Tags: []string{"Boolean", "Circuitry", "Hardware"}},
		{Name: "biolab", Title: "Bio-Lab", Tags: []string{"Genetics", "Evolution", "Sim"}},
		{Name: "econ", Title: "Econ-Model", Tags: []string{"Market", "Game Theory", "Risk"}},
	}
}

// LoadDir parses all .toml files in dir into profiles. A missing dir is not
// an error; an unparseable file or an unnamed module is.
func LoadDir(dir string) ([]Profile, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading module dir: %w", err)
	}

	var profiles []Profile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		var file profileFile
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		for _, profile := range file.Modules {
			if profile.Name == "" {
				return nil, fmt.Errorf("%s: module missing name", path)
			}
			profiles = append(profiles, profile)
		}
	}
	return profiles, nil
}

// ModuleStore defines what seeding needs from storage
type ModuleStore interface {
	UpsertModule(ctx context.Context, module *store.Module) error
	GetModuleByName(ctx context.Context, name string) (*store.Module, error)
}

// Seed upserts the built-in profiles and any profiles found in dir (dir may
// be empty). Directory profiles override built-ins with the same name.
func Seed(ctx context.Context, s ModuleStore, dir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "modules")

	profiles := Builtin()
	if dir != "" {
		fromDir, err := LoadDir(dir)
		if err != nil {
			return err
		}
		profiles = append(profiles, fromDir...)
	}

	for _, profile := range profiles {
		module := &store.Module{
			ID:        uuid.New().String(),
			Name:      profile.Name,
			Title:     profile.Title,
			Tags:      profile.Tags,
			Prompt:    profile.Prompt,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.UpsertModule(ctx, module); err != nil {
			return fmt.Errorf("seeding module %s: %w", profile.Name, err)
		}
	}

	logger.Info("module profiles seeded", "count", len(profiles), "dir", dir)
	return nil
}
