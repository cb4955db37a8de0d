package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/regiment-logi/quartermaster/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	                       _                            _
	  __ _ _   _  __ _ _ __| |_ ___ _ __ _ __ ___   __ _ ___| |_ ___ _ __
	 / _' | | | |/ _' | '__| __/ _ \ '__| '_ ' _ \ / _' / __| __/ _ \ '__|
	| (_| | |_| | (_| | |  | ||  __/ |  | | | | | | (_| \__ \ ||  __/ |
	 \__, |\__,_|\__,_|_|   \__\___|_|  |_| |_| |_|\__,_|___/\__\___|_|
	    |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quartermaster",
	Short: "Stockpile reconciliation and logistics scoring for Foxhole regiments.",
	Long: LOGO + `quartermaster keeps your regiment's stockpile scans, works out what changed between them,
credits the people doing the logistics and tells you what is still missing for your operations.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.quartermaster.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy for the war service (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().StringP("regiment", "r", "", "Regiment id (default from config key regiment)")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default from config key db.path)")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")

	viper.BindPFlag("regiment", rootCmd.PersistentFlags().Lookup("regiment"))
	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
}

// initConfig reads in .env, the config file and ENV variables if set.
func initConfig() {
	// A missing .env is normal.
	_ = godotenv.Load()

	viper.SetDefault("regiment", "")
	viper.SetDefault("db.path", "quartermaster.sqlite")
	viper.SetDefault("war.url", "https://war-service-live.foxholeservices.com/api/worldconquest/war")
	viper.SetDefault("war.ttl", 5*time.Minute)
	viper.SetDefault("war.timeout", 10*time.Second)
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".quartermaster")
		viper.SetConfigType("yaml")
	}

	// QM_DB_PATH, QM_WAR_TTL, ...
	viper.SetEnvPrefix("QM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.quartermaster.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
