package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/trustledger/internal/adapter/http/dto"
	"github.com/iho/trustledger/internal/adapter/http/middleware"
	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/auth"
	"github.com/iho/trustledger/internal/infrastructure/logger"
	"github.com/iho/trustledger/internal/infrastructure/postgres"
)

// Overridable in tests.
var (
	runMigrationsUp   = postgres.RunMigrations
	runMigrationsDown = postgres.RunMigrationsDown
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// client talks to the trust ledger REST API.
type client struct {
	baseURL string
	timeout time.Duration
	actorID string
	role    string
	token   string
}

func (c *client) do(method, path string, body any, headers map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, strings.TrimRight(c.baseURL, "/")+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.actorID != "" {
		req.Header.Set(middleware.ActorIDHeader, c.actorID)
		req.Header.Set(middleware.ActorRoleHeader, c.role)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := (&http.Client{Timeout: c.timeout}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// call performs a request and decodes a JSON response into out.
func (c *client) call(method, path string, body any, headers map[string]string, out any) error {
	resp, err := c.do(method, path, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return apiError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func apiError(status int, raw []byte) error {
	var body dto.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		if body.Message != "" {
			return fmt.Errorf("%s (status %d): %s", body.Error, status, body.Message)
		}
		return fmt.Errorf("%s (status %d)", body.Error, status)
	}
	return fmt.Errorf("request failed (status %d): %s", status, truncate(string(raw), 200))
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &client{}

	rootCmd := &cobra.Command{
		Use:           "trustledger-cli",
		Short:         "Trust ledger CLI tool",
		Long:          `A command line interface for the client trust ledger API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.baseURL, "url", "http://localhost:8080", "Base URL of the trust ledger API")
	flags.DurationVar(&c.timeout, "timeout", 10*time.Second, "Request timeout")
	flags.StringVar(&c.actorID, "actor", os.Getenv("TRUSTLEDGER_ACTOR"), "Actor ID sent when no token is given")
	flags.StringVar(&c.role, "role", string(domain.RoleStandard), "Actor role: standard, override or viewer")
	flags.StringVar(&c.token, "token", os.Getenv("TRUSTLEDGER_TOKEN"), "Bearer token")

	rootCmd.AddCommand(
		balanceCmd(c, out),
		historyCmd(c, out),
		recordCmd(c, out),
		reverseCmd(c, out),
		reconcileCmd(c, out),
		reconcileFirmCmd(c, out),
		verifyCmd(c, out),
		exportCmd(c, out),
		tokenCmd(out),
		migrateCmd(out),
	)
	return rootCmd
}

func balanceCmd(c *client, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <matter-id>",
		Short: "Show a matter's trust balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var account dto.TrustAccountResponse
			if err := c.call(http.MethodGet, matterPath(args[0])+"?limit=1", nil, nil, &account); err != nil {
				return err
			}
			fmt.Fprintf(out, "Matter:   %s\n", account.MatterID)
			fmt.Fprintf(out, "Balance:  %s %s\n", account.Balance, account.Currency)
			fmt.Fprintf(out, "Version:  %d\n", account.Version)
			return nil
		},
	}
}

func historyCmd(c *client, out io.Writer) *cobra.Command {
	var (
		limit  int
		cursor string
		order  string
		from   string
		to     string
		types  []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history <matter-id>",
		Short: "List a matter's trust transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			query.Set("limit", fmt.Sprint(limit))
			setIf(query, "cursor", cursor)
			setIf(query, "order", order)
			setIf(query, "from", from)
			setIf(query, "to", to)
			for _, t := range types {
				query.Add("type", t)
			}

			var account dto.TrustAccountResponse
			if err := c.call(http.MethodGet, matterPath(args[0])+"?"+query.Encode(), nil, nil, &account); err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, account)
			}
			printHistory(out, account)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", domain.DefaultPageSize, "Page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue after this cursor")
	cmd.Flags().StringVar(&order, "order", "", "asc or desc")
	cmd.Flags().StringVar(&from, "from", "", "Only entries at or after this RFC3339 time")
	cmd.Flags().StringVar(&to, "to", "", "Only entries at or before this RFC3339 time")
	cmd.Flags().StringSliceVar(&types, "type", nil, "Only these transaction types")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw response")
	return cmd
}

func recordCmd(c *client, out io.Writer) *cobra.Command {
	var (
		req            dto.RecordTransactionRequest
		txType, amount string
		idempotencyKey string
	)

	cmd := &cobra.Command{
		Use:   "record <matter-id>",
		Short: "Record a deposit, withdrawal, transfer or refund",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			money, err := domain.ParseMoney(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount: %w", err)
			}
			req.Type = txType
			req.Amount = money

			var headers map[string]string
			if idempotencyKey != "" {
				headers = map[string]string{middleware.IdempotencyKeyHeader: idempotencyKey}
			}

			var tx dto.TransactionResponse
			if err := c.call(http.MethodPost, matterPath(args[0]), req, headers, &tx); err != nil {
				return err
			}
			return printJSON(out, tx)
		},
	}

	cmd.Flags().StringVar(&txType, "type", "", "Transaction type: deposit, withdrawal, transfer or refund")
	cmd.Flags().StringVar(&amount, "amount", "", "Positive decimal amount")
	cmd.Flags().StringVar(&req.Description, "description", "", "Description")
	cmd.Flags().StringVar(&req.Reference, "reference", "", "External reference (check number, invoice)")
	cmd.Flags().StringVar(&req.Currency, "currency", "", "Currency for a new account")
	cmd.Flags().StringVar(&req.ClientID, "client", "", "Client owning the funds, for a new account")
	cmd.Flags().StringVar(&req.FirmAccountID, "firm-account", "", "Pooled firm trust account, for a new account")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency-Key header")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func reverseCmd(c *client, out io.Writer) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reverse <transaction-id>",
		Short: "Reverse a recorded transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tx dto.TransactionResponse
			path := "/api/v1/trust/transactions/" + url.PathEscape(args[0]) + "/reverse"
			if err := c.call(http.MethodPost, path, dto.ReverseTransactionRequest{Reason: reason}, nil, &tx); err != nil {
				return err
			}
			return printJSON(out, tx)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the transaction is reversed")
	return cmd
}

type reconcileFlags struct {
	bankBalance string
	asOf        string
}

func (f *reconcileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.bankBalance, "bank-balance", "", "Balance on the bank statement")
	cmd.Flags().StringVar(&f.asOf, "as-of", "", "Statement time (RFC3339), default now")
	_ = cmd.MarkFlagRequired("bank-balance")
}

func (f *reconcileFlags) request() (dto.ReconcileRequest, error) {
	balance, err := domain.ParseMoney(f.bankBalance)
	if err != nil {
		return dto.ReconcileRequest{}, fmt.Errorf("invalid --bank-balance: %w", err)
	}
	req := dto.ReconcileRequest{BankBalance: &balance}
	if f.asOf != "" {
		asOf, err := time.Parse(time.RFC3339, f.asOf)
		if err != nil {
			return dto.ReconcileRequest{}, fmt.Errorf("invalid --as-of: %w", err)
		}
		req.AsOf = &asOf
	}
	return req, nil
}

func reconcileCmd(c *client, out io.Writer) *cobra.Command {
	var flags reconcileFlags

	cmd := &cobra.Command{
		Use:   "reconcile <matter-id>",
		Short: "Reconcile a matter against a bank statement balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			var result dto.ReconciliationResponse
			if err := c.call(http.MethodPost, matterPath(args[0])+"/reconcile", req, nil, &result); err != nil {
				return err
			}
			return printJSON(out, result)
		},
	}
	flags.register(cmd)
	return cmd
}

func reconcileFirmCmd(c *client, out io.Writer) *cobra.Command {
	var flags reconcileFlags

	cmd := &cobra.Command{
		Use:   "reconcile-firm <firm-account-id>",
		Short: "Three-way reconciliation of a pooled firm trust account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			var result dto.FirmReconciliationResponse
			path := "/api/v1/firm-accounts/" + url.PathEscape(args[0]) + "/reconcile"
			if err := c.call(http.MethodPost, path, req, nil, &result); err != nil {
				return err
			}
			return printJSON(out, result)
		},
	}
	flags.register(cmd)
	return cmd
}

func verifyCmd(c *client, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <matter-id>",
		Short: "Replay a matter's history and check its stored balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var report dto.IntegrityResponse
			if err := c.call(http.MethodGet, matterPath(args[0])+"/verify", nil, nil, &report); err != nil {
				return err
			}
			if err := printJSON(out, report); err != nil {
				return err
			}
			if !report.OK {
				return fmt.Errorf("integrity check FAILED: %d problem(s)", len(report.Problems))
			}
			fmt.Fprintln(out, "Integrity check PASSED")
			return nil
		},
	}
}

func exportCmd(c *client, out io.Writer) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <matter-id>",
		Short: "Download a matter's history as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.do(http.MethodGet, matterPath(args[0])+"/export", nil, nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				raw, _ := io.ReadAll(resp.Body)
				return apiError(resp.StatusCode, raw)
			}

			dst := out
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				dst = f
			}
			if _, err := io.Copy(dst, resp.Body); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write, default stdout")
	return cmd
}

func tokenCmd(out io.Writer) *cobra.Command {
	var (
		secret  string
		actorID string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			actor := &domain.Actor{ID: actorID, Role: domain.Role(role)}
			if err := actor.Validate(); err != nil {
				return fmt.Errorf("invalid actor %q with role %q: %w", actorID, role, err)
			}
			token, err := auth.NewJWTManager(secret, ttl).Generate(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret")
	cmd.Flags().StringVar(&actorID, "actor", "", "Actor ID")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleStandard), "Actor role")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func migrateCmd(out io.Writer) *cobra.Command {
	var (
		databaseURL string
		path        string
		down        bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return errors.New("--database-url or DATABASE_URL is required")
			}
			log := logger.New(logger.Config{Level: "info", Format: "console", Output: out})
			if down {
				return runMigrationsDown(databaseURL, path, log)
			}
			return runMigrationsUp(databaseURL, path, log)
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	cmd.Flags().StringVar(&path, "path", os.Getenv("MIGRATIONS_PATH"), "Migrations directory, default embedded")
	cmd.Flags().BoolVar(&down, "down", false, "Roll back every migration")
	return cmd
}

func matterPath(matterID string) string {
	return "/api/v1/matters/" + url.PathEscape(matterID) + "/trust"
}

func setIf(query url.Values, key, value string) {
	if value != "" {
		query.Set(key, value)
	}
}

func printHistory(out io.Writer, account dto.TrustAccountResponse) {
	fmt.Fprintf(out, "Matter %s balance %s %s\n\n", account.MatterID, account.Balance, account.Currency)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tCREATED\tTYPE\tAMOUNT\tBALANCE\tDESCRIPTION")
	for _, tx := range account.Transactions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			tx.Sequence,
			tx.CreatedAt.Format(time.RFC3339),
			tx.Type,
			tx.Amount,
			tx.BalanceAfter,
			truncate(tx.Description, 40),
		)
	}
	_ = tw.Flush()

	if account.HasMore {
		fmt.Fprintf(out, "\nmore: --cursor %s\n", account.NextCursor)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
