package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/regiment-logi/quartermaster/internal/server"
	"github.com/regiment-logi/quartermaster/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = viper.GetString("server.listen")
		}
		user := viper.GetString("server.username")
		pass := viper.GetString("server.password")
		if user == "" && pass == "" {
			utils.Log.Warn("server.username and server.password are empty, the API is unauthenticated")
		}

		return server.New(svc, user, pass, utils.Log).Start(listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default from config key server.listen)")
}
