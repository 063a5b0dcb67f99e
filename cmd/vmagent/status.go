package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// statusResponse mirrors internal/server's /status route payload.
type statusResponse struct {
	UUID        string `json:"uuid"`
	JID         string `json:"jid"`
	HasDomain   bool   `json:"has_domain"`
	IsMigrating bool   `json:"is_migrating"`
}

func newStatusCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "query a running agent's diagnostics server and print its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8000", "diagnostics server base address")
	return cmd
}

func printStatus(addr string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(addr + "/status")
	if err != nil {
		return fmt.Errorf("query status: %w", err)
	}
	defer resp.Body.Close()

	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	fmt.Printf("uuid:  %s\n", st.UUID)
	fmt.Printf("jid:   %s\n", st.JID)

	if st.HasDomain {
		color.New(color.FgGreen).Println("domain:   defined")
	} else {
		color.New(color.FgYellow).Println("domain:   not defined")
	}

	if st.IsMigrating {
		color.New(color.FgCyan).Println("migrating: yes")
	} else {
		fmt.Println("migrating: no")
	}

	return nil
}
