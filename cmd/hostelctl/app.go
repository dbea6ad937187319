package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/uma-arai/sbcntr-hostel/internal/api"
	"github.com/uma-arai/sbcntr-hostel/internal/auth"
	"github.com/uma-arai/sbcntr-hostel/internal/common/config"
	"github.com/uma-arai/sbcntr-hostel/internal/service/allocation"
	"github.com/uma-arai/sbcntr-hostel/internal/service/management"
	"github.com/uma-arai/sbcntr-hostel/internal/service/notification"
	"github.com/uma-arai/sbcntr-hostel/internal/service/parcel"
	"github.com/uma-arai/sbcntr-hostel/internal/service/toast"
	"go.uber.org/zap"
)

// errUsage はコマンドの指定誤りです。使い方を表示して終了コード 2 で終わります
var errUsage = errors.New("usage")

var (
	anyRole    = []auth.Role{auth.RoleStudent, auth.RoleAdmin, auth.RoleWarden, auth.RoleStaff}
	adminRoles = []auth.Role{auth.RoleAdmin, auth.RoleWarden}
	staffRoles = []auth.Role{auth.RoleAdmin, auth.RoleWarden, auth.RoleStaff}
	students   = []auth.Role{auth.RoleStudent}
)

// command はサブコマンド1つです
type command struct {
	usage string
	roles []auth.Role
	run   func(ctx context.Context, args []string) error
}

// app は hostelctl の依存をまとめたものです
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	session *auth.Session
	client  *api.Client
	toasts  *toast.Queue
	out     io.Writer
	now     func() time.Time

	allocation *allocation.Service
	parcels    *parcel.Service
	panels     *management.Service

	// feedSources は通知の取得元です。db ソースの場合は接続を開くため遅延させます
	feedSources func(ctx context.Context) (notification.Store, notification.LiveSource, func(), error)

	groups map[string]map[string]command
}

func newApp(cfg *config.Config, logger *zap.Logger, session *auth.Session, client *api.Client, toasts *toast.Queue, out io.Writer) *app {
	a := &app{
		cfg:        cfg,
		logger:     logger,
		session:    session,
		client:     client,
		toasts:     toasts,
		out:        out,
		now:        time.Now,
		allocation: allocation.NewService(client, toasts, logger),
		parcels:    parcel.NewService(client, toasts, logger),
		panels:     management.NewService(management.CollectionsFrom(client), toasts, logger),
	}
	a.feedSources = a.defaultFeedSources
	a.groups = map[string]map[string]command{
		"requests":      a.requestCommands(),
		"rooms":         a.roomCommands(),
		"parcels":       a.parcelCommands(),
		"notifications": a.notificationCommands(),
		"staff":         a.staffCommands(),
		"payments":      a.paymentCommands(),
		"complaints":    a.complaintCommands(),
		"leave":         a.leaveCommands(),
	}
	return a
}

// run は引数を解釈し、役割を確認してからコマンドを実行します
func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printUsage()
		return errUsage
	}
	if args[0] == "whoami" {
		return a.whoami()
	}

	group, ok := a.groups[args[0]]
	if !ok {
		a.printUsage()
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	if len(args) < 2 {
		a.printGroupUsage(args[0], group)
		return errUsage
	}
	cmd, ok := group[args[1]]
	if !ok {
		a.printGroupUsage(args[0], group)
		return fmt.Errorf("%w: unknown command %q %q", errUsage, args[0], args[1])
	}

	if a.session.Expired(a.now()) {
		return fmt.Errorf("session expired, sign in again: %w", api.ErrUnauthorized)
	}
	if err := a.session.Require(cmd.roles...); err != nil {
		return err
	}

	a.logger.Debug("Running command",
		zap.String("group", args[0]),
		zap.String("command", args[1]),
		zap.String("role", string(a.session.Role)),
	)
	return cmd.run(ctx, args[2:])
}

func (a *app) whoami() error {
	w := a.table()
	fmt.Fprintf(w, "USER\t%s\n", a.session.UserID)
	fmt.Fprintf(w, "EMAIL\t%s\n", a.session.Email)
	fmt.Fprintf(w, "ROLE\t%s\n", a.session.Role)
	fmt.Fprintf(w, "HOME\t%s\n", a.session.HomePanel())
	if !a.session.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "EXPIRES\t%s\n", a.session.ExpiresAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (a *app) printUsage() {
	fmt.Fprintln(a.out, "usage: hostelctl <group> <command> [flags] [args]")
	fmt.Fprintln(a.out, "       hostelctl whoami")
	names := make([]string, 0, len(a.groups))
	for name := range a.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(a.out, "groups: %s\n", strings.Join(names, ", "))
}

func (a *app) printGroupUsage(name string, group map[string]command) {
	keys := make([]string, 0, len(group))
	for k := range group {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(a.out, "hostelctl %s %s %s\n", name, k, group[k].usage)
	}
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

// newFlags はサブコマンド用の FlagSet を作ります
func (a *app) newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

// parseWithID はフラグを解釈し、先頭の位置引数を ID として返します
// フラグは ID の前後どちらにも置けます
func parseWithID(fs *flag.FlagSet, args []string) (string, error) {
	var id string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		id, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("%w: %v", errUsage, err)
	}
	if id == "" && fs.NArg() > 0 {
		id = fs.Arg(0)
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s requires an id", errUsage, fs.Name())
	}
	return id, nil
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// visited は明示的に指定されたフラグ名を返します
func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
