package main

import (
	"bytes"
	"context"
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

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	apihttp "github.com/omokpang/omokpang/pkg/api/http"
)

// Runner holds the dependencies shared by every command.
type Runner struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	input      io.Reader
	output     io.Writer
}

// RunnerOpts configures a Runner. Zero values fall back to stdio and the
// default HTTP client.
type RunnerOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
	Input      io.Reader
	Output     io.Writer
}

// NewRunner creates a Runner from opts
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		input:      opts.Input,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		signupCommand, loginCommand, rankingCommand, cardsCommand, playCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// Before applies the global flags.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.baseURL = strings.TrimRight(cmd.String("server"), "/")
	if cmd.Bool("debug") {
		r.logger.SetLevel(log.DebugLevel)
	}
	return ctx, nil
}

// account is the JSON shape of a user returned by the server.
type account struct {
	Nickname string `json:"nickname"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Points   int    `json:"points"`
}

// Signup creates an account.
func (r *Runner) Signup(ctx context.Context, cmd *cli.Command) error {
	var acc account
	req := apihttp.AuthRequest{Nickname: cmd.String("nickname"), Password: cmd.String("password")}
	if err := r.do(ctx, http.MethodPost, "/api/v1/auth/signup", req, &acc); err != nil {
		return err
	}
	fmt.Fprintf(r.output, "created %s with %d points\n", acc.Nickname, acc.Points)
	return nil
}

// Login verifies credentials.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	var acc account
	req := apihttp.AuthRequest{Nickname: cmd.String("nickname"), Password: cmd.String("password")}
	if err := r.do(ctx, http.MethodPost, "/api/v1/auth/login", req, &acc); err != nil {
		return err
	}
	fmt.Fprintf(r.output, "%s: %d wins, %d losses, %d points\n", acc.Nickname, acc.Wins, acc.Losses, acc.Points)
	return nil
}

// Ranking prints the leaderboard.
func (r *Runner) Ranking(ctx context.Context, cmd *cli.Command) error {
	var resp struct {
		Ranking []apihttp.RankingEntry `json:"ranking"`
	}
	path := "/api/v1/ranking?limit=" + url.QueryEscape(fmt.Sprint(cmd.Int("limit")))
	if err := r.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return err
	}

	w := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNICKNAME\tW\tL\tPOINTS")
	for _, e := range resp.Ranking {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\n", e.Rank, e.Nickname, e.Wins, e.Losses, e.Points)
	}
	return w.Flush()
}

// Cards prints the card catalog.
func (r *Runner) Cards(ctx context.Context, cmd *cli.Command) error {
	var resp struct {
		Cards []struct {
			Type        string `json:"type"`
			Weight      int    `json:"weight"`
			Description string `json:"description"`
		} `json:"cards"`
		RerollCost int `json:"reroll_cost"`
	}
	if err := r.do(ctx, http.MethodGet, "/api/v1/cards", nil, &resp); err != nil {
		return err
	}

	w := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CARD\tWEIGHT\tEFFECT")
	for _, c := range resp.Cards {
		fmt.Fprintf(w, "%s\t%d\t%s\n", c.Type, c.Weight, c.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(r.output, "reroll cost: %d points\n", resp.RerollCost)
	return nil
}

// Reroll spends points on a new card.
func (r *Runner) Reroll(ctx context.Context, cmd *cli.Command) error {
	var resp struct {
		Card   string `json:"card"`
		Cost   int    `json:"cost"`
		Points int    `json:"points"`
	}
	req := apihttp.RerollRequest{Nickname: cmd.String("nickname")}
	if err := r.do(ctx, http.MethodPost, "/api/v1/cards/reroll", req, &resp); err != nil {
		return err
	}
	fmt.Fprintf(r.output, "drew %s for %d points, %d left\n", resp.Card, resp.Cost, resp.Points)
	return nil
}

// do sends a JSON request and decodes a JSON reply into out. Error bodies
// are turned into an error carrying the server's code.
func (r *Runner) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	r.logger.Debug("request", "method", method, "path", path)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apihttp.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error.Code == "" {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		return &serverError{status: resp.StatusCode, code: apiErr.Error.Code, message: apiErr.Error.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type serverError struct {
	status  int
	code    string
	message string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// errorCode returns the server error code carried by err, if any.
func errorCode(err error) string {
	var se *serverError
	if errors.As(err, &se) {
		return se.code
	}
	return ""
}
