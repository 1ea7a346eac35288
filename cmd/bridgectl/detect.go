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
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().StringVar(&detectKey, "mapping-key", "", "mapping key to detect against")
	detectCmd.Flags().StringVar(&detectRecordType, "record-type", "", "source record type to sample")
}

var (
	detectKey        string
	detectRecordType string
)

// detectReport mirrors the detect endpoint's data payload. new_fields is the
// array of proposed mappings, not a count.
type detectReport struct {
	TotalFields    int `json:"total_fields"`
	ExistingFields int `json:"existing_fields"`
	NewFields      []struct {
		SourceField  string `json:"source_field_name"`
		TargetColumn string `json:"target_column_name"`
		TargetType   string `json:"target_column_type"`
	} `json:"new_fields"`
	Inserted      int  `json:"inserted"`
	AlreadyExists int  `json:"already_exists"`
	FromFallback  bool `json:"from_fallback"`
}

func decodeDetectResponse(r io.Reader) (detectReport, error) {
	var envelope struct {
		Data detectReport `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return detectReport{}, err
	}
	return envelope.Data, nil
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run drift detection for a mapping key or record type",
	Run: func(cmd *cobra.Command, args []string) {
		if detectKey == "" && detectRecordType == "" {
			fmt.Println("❌ --mapping-key or --record-type is required")
			return
		}

		payload, _ := json.Marshal(map[string]string{
			"mapping_key": detectKey,
			"record_type": detectRecordType,
		})

		client := &http.Client{Timeout: 30 * time.Second}
		url := fmt.Sprintf("%s/api/mappings/detect", viper.GetString("url"))
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
			fmt.Printf("❌ Detection failed (%s): %s\n", resp.Status, string(body))
			return
		}

		d, err := decodeDetectResponse(resp.Body)
		if err != nil {
			fmt.Printf("Error parsing response: %v\n", err)
			return
		}

		fmt.Println("✅ Detection complete")
		fmt.Printf("Sampled fields:   %d\n", d.TotalFields)
		fmt.Printf("Already mapped:   %d\n", d.ExistingFields)
		fmt.Printf("Proposed:         %d\n", d.Inserted)
		if d.AlreadyExists > 0 {
			fmt.Printf("Raced duplicates: %d\n", d.AlreadyExists)
		}
		for _, f := range d.NewFields {
			fmt.Printf("  %-28s -> %-28s %s\n", f.SourceField, f.TargetColumn, f.TargetType)
		}
		if d.FromFallback {
			fmt.Println("⚠️  Source sample came from the standard field catalog")
		}
	},
}
