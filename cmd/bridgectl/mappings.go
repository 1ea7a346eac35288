package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(mappingsCmd)
	mappingsCmd.AddCommand(mappingsListCmd)
	mappingsCmd.AddCommand(mappingsActivateCmd)

	mappingsListCmd.Flags().StringVar(&listMappingKey, "mapping-key", "", "filter by mapping key")
	mappingsListCmd.Flags().BoolVar(&listIncludeActive, "include-active", false, "include already-activated mappings")

	mappingsActivateCmd.Flags().StringVar(&activateTargetColumn, "target-column", "", "override the proposed target column")
	mappingsActivateCmd.Flags().StringVar(&activateTargetType, "target-type", "", "override the proposed target type")
	mappingsActivateCmd.Flags().BoolVar(&activateOff, "off", false, "deactivate instead of activate")
}

var (
	listMappingKey       string
	listIncludeActive    bool
	activateTargetColumn string
	activateTargetType   string
	activateOff          bool
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Review and activate detected field mappings",
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List field mappings pending review",
	Run: func(cmd *cobra.Command, args []string) {
		client := &http.Client{Timeout: 10 * time.Second}
		url := fmt.Sprintf("%s/api/mappings?mapping_key=%s&include_active=%t",
			viper.GetString("url"), listMappingKey, listIncludeActive)
		req, _ := http.NewRequest("GET", url, nil)
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
			fmt.Printf("❌ List failed (%s): %s\n", resp.Status, string(body))
			return
		}

		var envelope struct {
			Data struct {
				Total  int `json:"total"`
				Fields []struct {
					MappingKey    string `json:"mapping_key"`
					SourceField   string `json:"source_field_name"`
					SourceType    string `json:"source_field_type"`
					TargetColumn  string `json:"target_column_name"`
					TargetType    string `json:"target_column_type"`
					IsActive      bool   `json:"is_active"`
					IsCustomField bool   `json:"is_custom_field"`
				} `json:"fields"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			fmt.Printf("Error parsing response: %v\n", err)
			return
		}

		fmt.Printf("📊 %d mapping(s)\n", envelope.Data.Total)
		for _, f := range envelope.Data.Fields {
			state := "pending"
			if f.IsActive {
				state = "active"
			}
			custom := ""
			if f.IsCustomField {
				custom = " [custom]"
			}
			fmt.Printf("  %-12s %-28s %-8s -> %-28s %-12s %s%s\n",
				f.MappingKey, f.SourceField, f.SourceType, f.TargetColumn, f.TargetType, state, custom)
		}
	},
}

var mappingsActivateCmd = &cobra.Command{
	Use:   "activate [mapping-key] [source-field]",
	Short: "Activate a detected mapping, optionally adjusting its target",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		payload, _ := json.Marshal(map[string]any{
			"mapping_key":   args[0],
			"source_field":  args[1],
			"active":        !activateOff,
			"target_column": activateTargetColumn,
			"target_type":   activateTargetType,
		})

		client := &http.Client{Timeout: 10 * time.Second}
		url := fmt.Sprintf("%s/api/mappings/activate", viper.GetString("url"))
		req, _ := http.NewRequest("POST", url, bytes.NewReader(payload))
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
			fmt.Printf("❌ Activation failed (%s): %s\n", resp.Status, string(body))
			return
		}

		if activateOff {
			fmt.Printf("✅ Deactivated %s/%s\n", args[0], args[1])
		} else {
			fmt.Printf("✅ Activated %s/%s\n", args[0], args[1])
		}
	},
}
