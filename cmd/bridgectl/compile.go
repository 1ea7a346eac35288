package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func init() {
	rootCmd.AddCommand(compileCmd)
}

var compileCmd = &cobra.Command{
	Use:   "compile [request-file]",
	Short: "Compile a mapping set file into SQL",
	Long:  `Reads a YAML or JSON compile request (target_table, mappings, primary_key, create_if_not_exists) and prints the generated SQL.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Printf("Error reading file: %v\n", err)
			return
		}

		var request any
		if err := yaml.Unmarshal(data, &request); err != nil {
			fmt.Printf("Error parsing request: %v\n", err)
			return
		}

		jsonData, _ := json.Marshal(request)
		client := &http.Client{Timeout: 10 * time.Second}
		url := fmt.Sprintf("%s/api/compile", viper.GetString("url"))
		req, _ := http.NewRequest("POST", url, bytes.NewReader(jsonData))
		req.Header.Set("Content-Type", "application/json")
		if key := viper.GetString("key"); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}

		resp, err := client.Do(req)
		if err != nil {
			fmt.Printf("Error connecting to API: %v\n", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			fmt.Printf("❌ Compile failed (%s): %s\n", resp.Status, string(body))
			return
		}

		var envelope struct {
			Data struct {
				SQL  string `json:"sql"`
				Mode string `json:"mode"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			fmt.Printf("Error parsing response: %v\n", err)
			return
		}

		fmt.Printf("-- mode: %s\n", envelope.Data.Mode)
		fmt.Println(envelope.Data.SQL)
	},
}
