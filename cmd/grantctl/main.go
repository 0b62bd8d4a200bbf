// grantctl 运维工具：查询申请与余额、对账、签发管理员 token
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/conf"
	"gopkg.in/yaml.v3"

	"grant-settlement-sol/internal/config"
	"grant-settlement-sol/internal/handler"
	"grant-settlement-sol/internal/ledger"
	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/svc"
)

const usage = `usage: grantctl [-f etc/settle.yaml] <command> [flags]

commands:
  list       -status pending|approved|rejected -limit N
  balance    [-owner <address>]   不指定 owner 时查询管理员账户
  reconcile  -sig <signature> [-last-valid <height>]
  sweep      推进所有在途结算
  token      [-sub admin] [-ttl 24h]
`

var configFile = flag.String("f", "etc/settle.yaml", "the config file")

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "grantctl: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	_ = godotenv.Load()

	var c config.Config
	if err := conf.Load(*configFile, &c); err != nil {
		return err
	}
	if err := logger.InitLogger(logger.LogOption{Format: "console", Level: "warn"}); err != nil {
		return err
	}
	defer logger.Sync()

	if cmd == "token" {
		return runToken(c, args)
	}

	admin, err := config.ParseAdminKey(os.Getenv(config.AdminKeyEnv))
	if err != nil {
		return err
	}
	sc, err := svc.NewServiceContext(c, admin)
	if err != nil {
		return err
	}
	defer sc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch cmd {
	case "list":
		return runList(ctx, sc, args)
	case "balance":
		return runBalance(ctx, sc, args)
	case "reconcile":
		return runReconcile(ctx, sc, args)
	case "sweep":
		sum, err := sc.Grant.ReconcileInFlight(ctx)
		if err != nil {
			return err
		}
		return printYAML(sum)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func runList(ctx context.Context, sc *svc.ServiceContext, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "filter by status")
	limit := fs.Int("limit", 0, "max rows, 0 means no limit")
	_ = fs.Parse(args)

	list, err := sc.Grant.List(ctx, ledger.ListFilter{Status: ledger.Status(*status), Limit: *limit})
	if err != nil {
		return err
	}
	return printYAML(list)
}

func runBalance(ctx context.Context, sc *svc.ServiceContext, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	owner := fs.String("owner", "", "wallet address")
	_ = fs.Parse(args)

	if *owner == "" {
		view, err := sc.Grant.AdminAccount(ctx)
		if err != nil {
			return err
		}
		return printYAML(view)
	}
	view, err := sc.Grant.Account(ctx, *owner)
	if err != nil {
		return err
	}
	return printYAML(view)
}

func runReconcile(ctx context.Context, sc *svc.ServiceContext, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	sig := fs.String("sig", "", "transaction signature")
	lastValid := fs.Uint64("last-valid", 0, "last valid block height of the transaction, 0 if unknown")
	_ = fs.Parse(args)

	res, err := sc.Grant.Reconcile(ctx, *sig, *lastValid)
	if err != nil {
		return err
	}
	return printYAML(res)
}

func runToken(c config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	sub := fs.String("sub", "admin", "token subject")
	ttl := fs.Duration("ttl", time.Duration(c.Auth.AccessExpire)*time.Second, "token lifetime")
	_ = fs.Parse(args)

	token, err := handler.NewAdminToken(c.Auth.AccessSecret, *sub, *ttl)
	if err != nil {
		return err
	}
	return printYAML(map[string]any{
		"token":     token,
		"subject":   *sub,
		"expiresAt": time.Now().Add(*ttl).UTC().Format(time.RFC3339),
	})
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
