package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/edurewards/edurewards-backend/internal/redemptions"
	pkgAuth "github.com/edurewards/edurewards-backend/pkg/auth"
	"github.com/edurewards/edurewards-backend/pkg/config"
	"github.com/edurewards/edurewards-backend/pkg/db"
	"github.com/edurewards/edurewards-backend/pkg/enums"
	"github.com/edurewards/edurewards-backend/pkg/instance"
	"github.com/edurewards/edurewards-backend/pkg/logger"
	"github.com/edurewards/edurewards-backend/pkg/migrate"
	"github.com/edurewards/edurewards-backend/pkg/pagination"
)

// exit codes callers (kiosk scripts) can branch on
const (
	exitRefused      = 2
	exitPendingRetry = 3
)

type cliApp struct {
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	logg   *logger.Logger
	dbConn *db.Client
	svc    redemptions.Service
}

func newApp(out, errOut io.Writer) *cli.App {
	a := &cliApp{out: out, errOut: errOut, now: time.Now}
	return &cli.App{
		Name:  "redeemctl",
		Usage: "issue and verify reward redemptions against a local store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "sqlite",
				Usage:   "path of the local SQLite database",
				EnvVars: []string{config.EnvSQLitePath},
				Value:   "edurewards.db",
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "use a throwaway in-memory store (dry run)",
			},
			&cli.IntFlag{
				Name:    "expiry-days",
				Usage:   "default validity window for issued redemptions",
				EnvVars: []string{config.EnvRedemptionExpiryDays},
				Value:   redemptions.DefaultExpiryDays,
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"EDUREWARDS_LOG_LEVEL"},
				Value:   "warn",
			},
		},
		Before: func(c *cli.Context) error {
			a.logg = logger.New(logger.Options{
				ServiceName: "redeemctl",
				Level:       logger.ParseLevel(c.String("log-level")),
				Output:      a.errOut,
			})
			return nil
		},
		After: func(c *cli.Context) error {
			if a.dbConn != nil {
				return a.dbConn.Close()
			}
			return nil
		},
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			a.commandIssue(),
			a.commandPayload(),
			a.commandDecode(),
			a.commandVerify(),
			a.commandList(),
			a.commandToken(),
		},
	}
}

// service opens the store on first use so commands like token never touch the disk.
func (a *cliApp) service(c *cli.Context) (redemptions.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}

	var store redemptions.Store
	if c.Bool("memory") {
		store = redemptions.NewMemoryStore()
	} else {
		conn, err := db.NewSQLite(c.Context, c.String("sqlite"), a.logg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.dbConn = conn
		sqlDB, err := conn.DB().DB()
		if err != nil {
			return nil, fmt.Errorf("extract sql.DB: %w", err)
		}
		if err := migrate.RunEmbedded(c.Context, sqlDB, migrate.DialectSQLite, "up"); err != nil {
			return nil, fmt.Errorf("migrate local store: %w", err)
		}
		store = redemptions.NewRepository(conn.DB())
	}

	svc, err := redemptions.NewService(redemptions.ServiceParams{
		Store:      store,
		ExpiryDays: c.Int("expiry-days"),
		Now:        a.now,
		Logger:     a.logg,
	})
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

func (a *cliApp) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type recordView struct {
	ID              string     `json:"id"`
	StudentID       string     `json:"studentId"`
	ProductID       string     `json:"productId"`
	ProductName     string     `json:"productName"`
	CoinsRedeemed   int64      `json:"coinsRedeemed"`
	Timestamp       int64      `json:"timestamp"`
	ExpiryDate      int64      `json:"expiryDate"`
	RedemptionCode  string     `json:"redemptionCode"`
	Status          string     `json:"status"`
	EffectiveStatus string     `json:"effectiveStatus,omitempty"`
	VerifierID      string     `json:"verifierId,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	VerifiedAt      *time.Time `json:"verifiedAt,omitempty"`
	CollectedAt     *time.Time `json:"collectedAt,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
}

func viewOf(r *redemptions.Record, effective enums.RedemptionStatus) *recordView {
	if r == nil {
		return nil
	}
	return &recordView{
		ID:              r.ID,
		StudentID:       r.StudentID,
		ProductID:       r.ProductID,
		ProductName:     r.ProductName,
		CoinsRedeemed:   r.CoinsRedeemed,
		Timestamp:       r.Timestamp,
		ExpiryDate:      r.ExpiryDate,
		RedemptionCode:  r.RedemptionCode,
		Status:          string(r.Status),
		EffectiveStatus: string(effective),
		VerifierID:      r.VerifierID,
		RejectionReason: r.RejectionReason,
		VerifiedAt:      r.VerifiedAt,
		CollectedAt:     r.CollectedAt,
		RejectedAt:      r.RejectedAt,
	}
}

func (a *cliApp) commandIssue() *cli.Command {
	return &cli.Command{
		Name:  "issue",
		Usage: "create a pending redemption and print its payload",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "student", Required: true},
			&cli.StringFlag{Name: "product", Required: true},
			&cli.StringFlag{Name: "name", Usage: "product name", Required: true},
			&cli.Int64Flag{Name: "coins"},
			&cli.IntFlag{Name: "days", Usage: "override the validity window"},
		},
		Action: func(c *cli.Context) error {
			svc, err := a.service(c)
			if err != nil {
				return err
			}
			input := redemptions.BuildInput{
				StudentID:     c.String("student"),
				ProductID:     c.String("product"),
				ProductName:   c.String("name"),
				CoinsRedeemed: c.Int64("coins"),
			}
			if c.IsSet("days") {
				days := c.Int("days")
				input.ExpiryDays = &days
			}
			issued, err := svc.Issue(c.Context, input)
			if err != nil {
				return err
			}
			return a.print(map[string]any{
				"redemption": viewOf(issued.Record, issued.Record.Status),
				"payload":    issued.Payload,
			})
		},
	}
}

func (a *cliApp) commandPayload() *cli.Command {
	return &cli.Command{
		Name:      "payload",
		Usage:     "print the scannable payload of a stored redemption",
		ArgsUsage: "<redemption-id>",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return cli.Exit("redemption id is required", 1)
			}
			svc, err := a.service(c)
			if err != nil {
				return err
			}
			payload, err := svc.Payload(c.Context, id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, payload)
			return err
		},
	}
}

func (a *cliApp) commandDecode() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "decode a scanned payload without changing any state",
		ArgsUsage: "<payload | ->",
		Action: func(c *cli.Context) error {
			raw, err := readArg(c)
			if err != nil {
				return err
			}
			svc, err := a.service(c)
			if err != nil {
				return err
			}
			result := svc.Decode(raw)
			if err := a.print(result); err != nil {
				return err
			}
			if !result.Valid {
				return cli.Exit(result.Error, exitRefused)
			}
			return nil
		},
	}
}

func (a *cliApp) commandVerify() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "accept, collect or reject a redemption by payload or typed code",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "payload", Usage: "scanned payload, - reads stdin"},
			&cli.StringFlag{Name: "code", Usage: "typed fallback code EDU-XXX-XXXX"},
			&cli.StringFlag{Name: "intent", Value: string(enums.VerificationIntentAccept)},
			&cli.StringFlag{Name: "reason", Usage: "required for reject"},
			&cli.StringFlag{Name: "verifier", Usage: "verifier id recorded on the transition", EnvVars: []string{"EDUREWARDS_VERIFIER_ID"}},
		},
		Action: func(c *cli.Context) error {
			intent, err := enums.ParseVerificationIntent(c.String("intent"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			payload := c.String("payload")
			if payload == "-" {
				if payload, err = readStdin(); err != nil {
					return err
				}
			}
			verifier := c.String("verifier")
			if verifier == "" {
				verifier = instance.GetID()
			}

			svc, err := a.service(c)
			if err != nil {
				return err
			}
			outcome, err := svc.Verify(c.Context, redemptions.VerifyRequest{
				Payload:    payload,
				Code:       c.String("code"),
				Intent:     intent,
				Reason:     c.String("reason"),
				VerifierID: verifier,
			})
			if err != nil {
				return err
			}

			if err := a.print(map[string]any{
				"outcome":    outcome.Kind,
				"intent":     outcome.Intent,
				"status":     outcome.Status,
				"replayed":   outcome.Replayed,
				"message":    outcome.Message,
				"redemption": viewOf(outcome.Record, outcome.Status),
			}); err != nil {
				return err
			}

			switch {
			case outcome.Succeeded():
				return nil
			case outcome.Kind == redemptions.OutcomePendingRetry:
				return cli.Exit(outcome.Err().Error(), exitPendingRetry)
			default:
				return cli.Exit(outcome.Err().Error(), exitRefused)
			}
		},
	}
}

func (a *cliApp) commandList() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list a student's redemptions, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "student", Required: true},
			&cli.IntFlag{Name: "limit", Value: pagination.DefaultLimit},
			&cli.StringFlag{Name: "cursor"},
		},
		Action: func(c *cli.Context) error {
			svc, err := a.service(c)
			if err != nil {
				return err
			}
			page, err := svc.ListByStudent(c.Context, redemptions.ListParams{
				StudentID: c.String("student"),
				Limit:     c.Int("limit"),
				Cursor:    c.String("cursor"),
			})
			if err != nil {
				return err
			}
			items := make([]*recordView, 0, len(page.Items))
			for _, item := range page.Items {
				items = append(items, viewOf(item.Record, item.EffectiveStatus))
			}
			return a.print(map[string]any{"items": items, "cursor": page.Cursor})
		},
	}
}

func (a *cliApp) commandToken() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint an access token for local testing of the API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true},
			&cli.StringFlag{Name: "role", Value: string(enums.RoleStudent)},
			&cli.StringFlag{Name: "school"},
			&cli.StringFlag{Name: "secret", EnvVars: []string{config.EnvJWTSecret}, Required: true},
			&cli.StringFlag{Name: "issuer", EnvVars: []string{config.EnvJWTIssuer}, Required: true},
			&cli.IntFlag{Name: "minutes", EnvVars: []string{config.EnvJWTExpMins}, Value: 60},
		},
		Action: func(c *cli.Context) error {
			cfg := config.JWTConfig{
				Secret:            c.String("secret"),
				Issuer:            c.String("issuer"),
				ExpirationMinutes: c.Int("minutes"),
			}
			token, err := pkgAuth.MintAccessToken(cfg, a.now(), pkgAuth.AccessTokenPayload{
				UserID:   c.String("user"),
				Role:     enums.Role(strings.ToLower(c.String("role"))),
				SchoolID: c.String("school"),
			})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			_, err = fmt.Fprintln(a.out, token)
			return err
		},
	}
}

func readArg(c *cli.Context) (string, error) {
	raw := c.Args().First()
	if raw == "-" {
		return readStdin()
	}
	if raw == "" {
		return "", cli.Exit("payload argument is required", 1)
	}
	return raw, nil
}

func readStdin() (string, error) {
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
