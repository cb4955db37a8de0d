package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/regiment-logi/quartermaster/internal/utils"
	"github.com/regiment-logi/quartermaster/pkg/logistics"
	"github.com/regiment-logi/quartermaster/pkg/storage"
	"github.com/regiment-logi/quartermaster/pkg/warapi"
	"github.com/regiment-logi/quartermaster/pkg/whttp"
)

// openService opens the database and builds the logistics service with a
// cached war oracle. The returned close func releases the database.
func openService(cmd *cobra.Command) (*logistics.Service, func(), error) {
	dbPath := viper.GetString("db.path")
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open database %s: %w", dbPath, err)
	}

	proxy, _ := cmd.Flags().GetString("proxy")
	if proxy != "" {
		if err := whttp.SetupProxy(proxy); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	client := &warapi.Client{
		URL:  viper.GetString("war.url"),
		HTTP: whttp.NewClient(proxy, viper.GetDuration("war.timeout")),
	}
	cache := warapi.NewCache(client, viper.GetDuration("war.ttl"), utils.Log)

	return logistics.New(db, cache, utils.Log), func() { db.Close() }, nil
}

// regimentID returns the regiment all commands operate on.
func regimentID() (string, error) {
	r := viper.GetString("regiment")
	if r == "" {
		return "", fmt.Errorf("no regiment set: use --regiment or the regiment config key")
	}
	return r, nil
}

// withDBLock runs fn while holding the write lock of the configured database.
func withDBLock(cmd *cobra.Command, fn func() error) error {
	lock, err := utils.NewDBLock(viper.GetString("db.path"))
	if err != nil {
		return err
	}
	return lock.Do(cmd.Context(), fn)
}

// readJSON decodes path, or stdin when path is "-" or empty, into v.
func readJSON(path string, v interface{}) error {
	in := os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	if err := json.NewDecoder(in).Decode(v); err != nil {
		return fmt.Errorf("could not decode JSON input: %w", err)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
