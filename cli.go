package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/m1ome/ex-eip712/pkg/log"
	"github.com/m1ome/ex-eip712/pkg/rpc"
	"github.com/m1ome/ex-eip712/pkg/signing"
)

const (
	optionNameSecret = "secret"
	optionNameFile   = "file"
	optionNameRemote = "remote"
	optionNameMethod = "method"
	optionNameLimit  = "limit"

	remoteCallTimeout = 10 * time.Second
)

// errSignFailed is returned after an error result has been printed.
var errSignFailed = errors.New("signing failed")

type command struct {
	root   *cobra.Command
	logger log.Logger
	config *Config
}

type option func(*command)

func withLogger(logger log.Logger) option {
	return func(c *command) { c.logger = logger }
}

// withConfig skips loading the configuration from the environment.
func withConfig(config *Config) option {
	return func(c *command) { c.config = config }
}

func newCommand(opts ...option) (*command, error) {
	c := &command{}
	c.root = &cobra.Command{
		Use:           "ex-eip712",
		Short:         "EIP-712 and personal_sign signing service",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd)
		},
	}

	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = log.NewNoopLogger()
	}

	c.initServeCmd()
	c.initSignCmd()
	c.initSignMessageCmd()
	c.initJournalCmd()

	return c, nil
}

func (c *command) Execute() error {
	return c.root.Execute()
}

func (c *command) initConfig() error {
	if c.config != nil {
		return nil
	}

	config, err := LoadConfig(c.logger)
	if err != nil {
		return err
	}
	c.config = config
	c.logger = log.NewZapLogger(config.Log).WithName("root")
	return nil
}

func (c *command) initServeCmd() {
	c.root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket RPC and metrics servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd)
		},
	})
}

func (c *command) serve(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runServe(ctx, c.config, c.logger)
}

func (c *command) initSignCmd() {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign an EIP-712 typed-data document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			document, err := c.readDocument(cmd)
			if err != nil {
				return c.printResult(cmd, signing.Result{Status: signing.StatusError, Value: err.Error()})
			}

			secret, _ := cmd.Flags().GetString(optionNameSecret)
			remote, _ := cmd.Flags().GetString(optionNameRemote)
			if remote != "" {
				// The document travels as a JSON string so it reaches the
				// server byte for byte.
				return c.printResult(cmd, c.callRemote(cmd.Context(), remote, rpc.SignMethod, rpc.SignRequest{
					Document: mustMarshal(string(document)),
					Secret:   secret,
				}))
			}

			service := signing.NewService(c.config.curve, c.logger)
			return c.printResult(cmd, service.Sign(string(document), c.secretOrDefault(secret)))
		},
	}

	cmd.Flags().String(optionNameSecret, "", "hex private key, defaults to EIP712_SIGNER_PRIVATE_KEY")
	cmd.Flags().String(optionNameFile, "-", "typed-data JSON file, - for stdin")
	cmd.Flags().String(optionNameRemote, "", "sign through a running server, e.g. ws://localhost:8000/ws")

	c.root.AddCommand(cmd)
}

func (c *command) initSignMessageCmd() {
	cmd := &cobra.Command{
		Use:   "sign-message <text>",
		Short: "Sign a text message with the personal_sign prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, _ := cmd.Flags().GetString(optionNameSecret)
			remote, _ := cmd.Flags().GetString(optionNameRemote)
			if remote != "" {
				return c.printResult(cmd, c.callRemote(cmd.Context(), remote, rpc.SignMessageMethod, rpc.SignMessageRequest{
					Message: args[0],
					Secret:  secret,
				}))
			}

			service := signing.NewService(c.config.curve, c.logger)
			return c.printResult(cmd, service.SignMessage(args[0], c.secretOrDefault(secret)))
		},
	}

	cmd.Flags().String(optionNameSecret, "", "hex private key, defaults to EIP712_SIGNER_PRIVATE_KEY")
	cmd.Flags().String(optionNameRemote, "", "sign through a running server, e.g. ws://localhost:8000/ws")

	c.root.AddCommand(cmd)
}

func (c *command) initJournalCmd() {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the signature journal",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print journaled signatures, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			method, _ := cmd.Flags().GetString(optionNameMethod)
			limit, _ := cmd.Flags().GetUint32(optionNameLimit)

			db, err := ConnectToDB(c.config.dbConf, c.logger)
			if err != nil {
				return fmt.Errorf("failed to setup database: %w", err)
			}

			records, err := NewJournalStore(db).List(method, &ListOptions{Limit: limit})
			if err != nil {
				return err
			}

			entries := make([]rpc.SignatureEntry, len(records))
			for i, record := range records {
				entries[i] = rpc.SignatureEntry{
					ID:           record.ID,
					Method:       record.Method,
					Digest:       record.Digest,
					Signature:    record.Signature,
					ConnectionID: record.ConnectionID,
					CreatedAt:    record.CreatedAt.UnixMilli(),
				}
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(entries)
		},
	}
	listCmd.Flags().String(optionNameMethod, "", "filter by method: sign or sign_message")
	listCmd.Flags().Uint32(optionNameLimit, DefaultLimit, "maximum number of records")

	journalCmd.AddCommand(listCmd)
	c.root.AddCommand(journalCmd)
}

// readDocument reads --file, or stdin for "-", up to MaxDocumentSize bytes.
func (c *command) readDocument(cmd *cobra.Command) ([]byte, error) {
	path, _ := cmd.Flags().GetString(optionNameFile)

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	document, err := io.ReadAll(io.LimitReader(r, c.config.MaxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(document)) > c.config.MaxDocumentSize {
		return nil, fmt.Errorf("document exceeds %d bytes", c.config.MaxDocumentSize)
	}
	return document, nil
}

func (c *command) secretOrDefault(secret string) string {
	if secret == "" {
		return c.config.SignerPrivateKey
	}
	return secret
}

func (c *command) callRemote(ctx context.Context, url string, method rpc.Method, request any) signing.Result {
	fail := func(err error) signing.Result {
		return signing.Result{Status: signing.StatusError, Value: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	dialerCfg := rpc.DefaultWebsocketDialerConfig
	dialerCfg.PingInterval = 0
	dialer := rpc.NewWebsocketDialer(dialerCfg)
	if err := dialer.Dial(log.SetContextLogger(ctx, c.logger), url, func(error) {}); err != nil {
		return fail(err)
	}

	params, err := rpc.NewParams(request)
	if err != nil {
		return fail(err)
	}
	req := rpc.NewRequest(rpc.NewPayload(dialer.NextRequestID(), method.String(), params))
	res, err := dialer.Call(ctx, &req)
	if err != nil {
		return fail(err)
	}
	if err := res.Error(); err != nil {
		return fail(err)
	}

	var response rpc.SignResponse
	if err := res.Res.Params.Translate(&response); err != nil {
		return fail(err)
	}
	return signing.Result{Status: signing.StatusOK, Value: response.Signature}
}

func (c *command) printResult(cmd *cobra.Command, result signing.Result) error {
	if err := json.NewEncoder(cmd.OutOrStdout()).Encode(result); err != nil {
		return err
	}
	if !result.OK() {
		return errSignFailed
	}
	return nil
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
