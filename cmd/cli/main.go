package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
	token   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "payouts-cli",
		Short: "Payouts CLI tool",
		Long:  `A command line interface for the payout disbursement API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the payouts API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("PAYOUTS_TOKEN"), "Bearer token for authenticated endpoints")

	payeeCmd := &cobra.Command{
		Use:   "payee",
		Short: "Payee operations",
	}
	payeeCmd.AddCommand(eligibilityCmd(), estimateCmd(), triggerCmd(), pauseCmd(), resumeCmd())

	paymentCmd := &cobra.Command{
		Use:   "payment",
		Short: "Payment operations",
	}
	paymentCmd.AddCommand(paymentGetCmd())

	rootCmd.AddCommand(payeeCmd, paymentCmd, loginCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func eligibilityCmd() *cobra.Command {
	var cutoff string

	cmd := &cobra.Command{
		Use:   "eligibility <payee-id>",
		Short: "Check whether a payee is payable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/payees/" + args[0] + "/eligibility"
			if cutoff != "" {
				path += "?cutoff=" + cutoff
			}
			return getAndPrint(path)
		},
	}
	cmd.Flags().StringVar(&cutoff, "cutoff", "", "Cutoff date (YYYY-MM-DD, default today)")

	return cmd
}

func estimateCmd() *cobra.Command {
	var cutoff, proc string

	cmd := &cobra.Command{
		Use:   "estimate <payee-id>",
		Short: "Estimate the payable amount for a payee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/payees/" + args[0] + "/estimate"
			query := url.Values{}
			if cutoff != "" {
				query.Set("cutoff", cutoff)
			}
			if proc != "" {
				query.Set("processor", proc)
			}
			if len(query) > 0 {
				path += "?" + query.Encode()
			}
			return getAndPrint(path)
		},
	}
	cmd.Flags().StringVar(&cutoff, "cutoff", "", "Cutoff date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&proc, "processor", "", "Scope the estimate to one processor (stripe, paypal)")

	return cmd
}

func triggerCmd() *cobra.Command {
	var (
		cutoff           string
		proc             string
		payoutType       string
		bypassSuspension bool
	)

	cmd := &cobra.Command{
		Use:   "payout <payee-id>",
		Short: "Trigger a payout for a payee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{}
			if cutoff != "" {
				body["cutoff_date"] = cutoff
			}
			if proc != "" {
				body["processor"] = proc
			}
			if payoutType != "" {
				body["payout_type"] = payoutType
			}
			if bypassSuspension {
				body["bypass_suspension"] = true
			}
			return postAndPrint("/api/v1/payees/"+args[0]+"/payouts", body)
		},
	}
	cmd.Flags().StringVar(&cutoff, "cutoff", "", "Cutoff date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&proc, "processor", "", "Restrict the run to one processor (stripe, paypal)")
	cmd.Flags().StringVar(&payoutType, "type", "", "Payout type (standard, instant)")
	cmd.Flags().BoolVar(&bypassSuspension, "bypass-suspension", false, "Pay out a suspended payee anyway")

	return cmd
}

func pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <payee-id>",
		Short: "Pause payouts for a payee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAndPrint("/api/v1/payees/"+args[0]+"/payouts/pause", nil)
		},
	}
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <payee-id>",
		Short: "Resume payouts for a payee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAndPrint("/api/v1/payees/"+args[0]+"/payouts/resume", nil)
		},
	}
}

func paymentGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <payment-id>",
		Short: "Show a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint("/api/v1/payments/" + args[0])
		},
	}
}

func loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAndPrint("/api/v1/auth/login", map[string]string{
				"email":    email,
				"password": password,
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Operator email")
	cmd.Flags().StringVar(&password, "password", "", "Operator password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func getAndPrint(path string) error {
	return doRequest(http.MethodGet, path, nil)
}

func postAndPrint(path string, body any) error {
	return doRequest(http.MethodPost, path, body)
}

func doRequest(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, string(raw))
	}
	printJSON(parsed)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(out))
}
