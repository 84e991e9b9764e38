package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"forgesync/internal/backend"
	"forgesync/internal/ipc"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var carrierPath string
	var optionsJSON string
	var passphrase string

	cmd := &cobra.Command{
		Use:   "submit <target>...",
		Short: "Submit target files with a carrier image for encapsulation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(carrierPath) == "" {
				return fmt.Errorf("a carrier image is required (--carrier)")
			}

			options, err := buildSubmitOptions(optionsJSON, passphrase)
			if err != nil {
				return err
			}

			req := ipc.SubmitRequest{OptionsJSON: options}
			for _, target := range args {
				file, err := readSubmitFile(target)
				if err != nil {
					return err
				}
				req.Targets = append(req.Targets, file)
			}
			carrier, err := readSubmitFile(carrierPath)
			if err != nil {
				return err
			}
			req.Carrier = carrier

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(req)
				if err != nil {
					return err
				}
				if resp.Queued {
					fmt.Fprintf(cmd.OutOrStdout(), "Queued for later submission (id %s)\n", resp.JobID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Job created: %s\n", resp.JobID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&carrierPath, "carrier", "i", "", "Carrier image file")
	cmd.Flags().StringVarP(&optionsJSON, "options", "o", "", "Encapsulation options as a JSON object")
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "Encryption passphrase")
	return cmd
}

func buildSubmitOptions(optionsJSON, passphrase string) (string, error) {
	options := backend.DefaultOptions()
	if strings.TrimSpace(optionsJSON) != "" {
		parsed, err := backend.ParseOptions(json.RawMessage(optionsJSON))
		if err != nil {
			return "", fmt.Errorf("parse options: %w", err)
		}
		options = parsed
	}
	if passphrase != "" {
		options.Passphrase = passphrase
	}
	encoded, err := options.EncodeJSON()
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(encoded), nil
}

func readSubmitFile(path string) (ipc.SubmitFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ipc.SubmitFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return ipc.SubmitFile{Name: name, MIME: mimeType, Data: data}, nil
}
