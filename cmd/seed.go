package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/eventrescue/core/model"
	"github.com/kilianp07/eventrescue/infra/logger"
)

var (
	seedFile string
	seedAddr string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register responders from a JSON file against a running service",
	RunE:  seedResponders,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "responders.json", "responder roster file")
	seedCmd.Flags().StringVarP(&seedAddr, "addr", "a", "http://localhost:8080", "service base URL")
	rootCmd.AddCommand(seedCmd)
}

func seedResponders(cmd *cobra.Command, args []string) error {
	logg := logger.New("seed-command")
	data, err := os.ReadFile(seedFile)
	if err != nil {
		return fmt.Errorf("read roster: %w", err)
	}
	var roster []model.Responder
	if err := json.Unmarshal(data, &roster); err != nil {
		return fmt.Errorf("decode roster: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	for _, resp := range roster {
		payload, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		res, err := client.Post(seedAddr+"/api/responders", "application/json", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("register %s: %w", resp.ID, err)
		}
		_ = res.Body.Close()
		switch res.StatusCode {
		case http.StatusCreated:
			logg.Infof("registered %s (%s)", resp.ID, resp.Type)
		case http.StatusConflict:
			logg.Warnf("responder %s already registered", resp.ID)
		default:
			return fmt.Errorf("register %s: status %d", resp.ID, res.StatusCode)
		}
	}
	return nil
}
