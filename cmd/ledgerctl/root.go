package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/mmeshcher/reward-ledger/internal/adminclient"
)

const defaultServer = "localhost:8080"

// profile хранит содержимое ~/.config/ledgerctl.toml.
type profile struct {
	Server string `toml:"server"`
	Key    string `toml:"key"`
}

type options struct {
	configPath string
	server     string
	key        string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Admin client for the reward ledger service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "profile file (default ~/.config/ledgerctl.toml)")
	root.PersistentFlags().StringVar(&opts.server, "server", "", "service address, overrides the profile")
	root.PersistentFlags().StringVar(&opts.key, "key", "", "admin secret, overrides the profile")

	root.AddCommand(
		newStatsCmd(opts),
		newApproveCmd(opts),
		newAddTaskCmd(opts),
		newExportCmd(opts),
	)
	return root
}

// client собирает клиент из профиля и флагов. Флаги имеют приоритет.
func (o *options) client() (*adminclient.Client, error) {
	p, err := loadProfile(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.server != "" {
		p.Server = o.server
	}
	if o.key != "" {
		p.Key = o.key
	}
	if p.Server == "" {
		p.Server = defaultServer
	}
	if p.Key == "" {
		return nil, errors.New("admin key is not set: use --key or the profile file")
	}
	return adminclient.NewClient(p.Server, p.Key), nil
}

// loadProfile читает профиль. Отсутствие файла по умолчанию не считается ошибкой.
func loadProfile(path string) (profile, error) {
	var p profile

	explicit := path != ""
	if !explicit {
		dir, err := os.UserConfigDir()
		if err != nil {
			return p, nil
		}
		path = filepath.Join(dir, "ledgerctl.toml")
	}

	if _, err := toml.DecodeFile(path, &p); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return profile{}, nil
		}
		return profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}
	return p, nil
}
