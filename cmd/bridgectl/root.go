package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	apiURL  string
	apiKey  string
)

var rootCmd = &cobra.Command{
	Use:   "bridgectl",
	Short: "Operator CLI for the FieldBridge mapping engine",
	Long:  `bridgectl drives the FieldBridge HTTP API from the terminal: run drift detection, review and activate field mappings, and compile mapping sets into SQL.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bridgectl.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", "http://localhost:4000", "FieldBridge API URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "key", "", "FieldBridge API Key")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	viper.BindPFlag("key", rootCmd.PersistentFlags().Lookup("key"))
}

// initConfig layers the optional config file and environment over the flag
// defaults.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".bridgectl")
	}

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
