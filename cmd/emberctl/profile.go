package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	profilesDirMode  = 0o700
	profilesFileMode = 0o600
	profilesFileName = "profiles.toml"
)

// profilesFile is the on-disk schema. Secrets are stored in the clear, so
// the file stays at 0600 under a 0700 directory.
type profilesFile struct {
	Version  int            `toml:"version"`
	Default  string         `toml:"default,omitempty"`
	Profiles []profileEntry `toml:"profiles"`
}

type profileEntry struct {
	Name   string `toml:"name"`
	Host   string `toml:"host"`
	Secret string `toml:"secret,omitempty"`
}

// profilesPath resolves the profile store location; EMBERCTL_DIR overrides
// the default ~/.emberctl.
func profilesPath() string {
	if dir := os.Getenv("EMBERCTL_DIR"); dir != "" {
		return filepath.Join(dir, profilesFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return profilesFileName
	}
	return filepath.Join(home, ".emberctl", profilesFileName)
}

func loadProfiles(path string) (profilesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return profilesFile{Version: 1}, nil
		}
		return profilesFile{}, fmt.Errorf("read profiles: %w", err)
	}
	var file profilesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return profilesFile{}, fmt.Errorf("decode profiles: %w", err)
	}
	if file.Version == 0 {
		file.Version = 1
	}
	return file, nil
}

func saveProfiles(path string, file profilesFile) error {
	if file.Version == 0 {
		file.Version = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), profilesDirMode); err != nil {
		return fmt.Errorf("create profiles directory: %w", err)
	}
	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".profiles-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("create temp profiles file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp profiles file: %w", err)
	}
	if err := tmp.Chmod(profilesFileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp profiles file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp profiles file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace profiles file: %w", err)
	}
	cleanup = false
	return nil
}

// lookupProfile finds a profile by name; an empty name means the file's
// default, or the sole saved profile.
func lookupProfile(path, name string) (profileEntry, bool, error) {
	file, err := loadProfiles(path)
	if err != nil {
		return profileEntry{}, false, err
	}
	if name == "" {
		name = file.Default
	}
	if name == "" {
		if len(file.Profiles) == 1 {
			return file.Profiles[0], true, nil
		}
		return profileEntry{}, false, nil
	}
	for _, p := range file.Profiles {
		if p.Name == name {
			return p, true, nil
		}
	}
	return profileEntry{}, false, nil
}

func newProfileCmd(cfg *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage saved device profiles",
	}
	cmd.AddCommand(newProfileSaveCmd(cfg), newProfileListCmd(), newProfileRemoveCmd())
	return cmd
}

func newProfileSaveCmd(cfg *viper.Viper) *cobra.Command {
	var makeDefault bool
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the current --host and --secret under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := cfg.GetString("host")
			if host == "" {
				return errors.New("profile save needs --host")
			}

			path := profilesPath()
			file, err := loadProfiles(path)
			if err != nil {
				return err
			}

			entry := profileEntry{Name: args[0], Host: host, Secret: cfg.GetString("secret")}
			updated := false
			for i := range file.Profiles {
				if file.Profiles[i].Name == entry.Name {
					file.Profiles[i] = entry
					updated = true
					break
				}
			}
			if !updated {
				file.Profiles = append(file.Profiles, entry)
			}
			if makeDefault || file.Default == "" {
				file.Default = entry.Name
			}

			if err := saveProfiles(path, file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved profile %s (%s)\n", entry.Name, entry.Host)
			return nil
		},
	}
	cmd.Flags().BoolVar(&makeDefault, "default", false, "Make this the default profile.")
	return cmd
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := loadProfiles(profilesPath())
			if err != nil {
				return err
			}
			if len(file.Profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no saved profiles.")
				return nil
			}

			tbl := uitable.New()
			tbl.Separator = "  "
			bold := color.New(color.Bold)
			tbl.AddRow(bold.Sprint("NAME"), bold.Sprint("HOST"), bold.Sprint("SECRET"))
			for _, p := range file.Profiles {
				name := p.Name
				if p.Name == file.Default {
					name += " *"
				}
				secret := "-"
				if p.Secret != "" {
					secret = "set"
				}
				tbl.AddRow(name, p.Host, secret)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return nil
		},
	}
}

func newProfileRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Delete a saved profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := profilesPath()
			file, err := loadProfiles(path)
			if err != nil {
				return err
			}

			kept := file.Profiles[:0]
			found := false
			for _, p := range file.Profiles {
				if p.Name == args[0] {
					found = true
					continue
				}
				kept = append(kept, p)
			}
			if !found {
				return fmt.Errorf("profile %q not found", args[0])
			}
			file.Profiles = kept
			if file.Default == args[0] {
				file.Default = ""
			}

			if err := saveProfiles(path, file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed profile %s\n", args[0])
			return nil
		},
	}
}
