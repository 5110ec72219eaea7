package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gospelux/gospelux"
	"github.com/gospelux/gospelux/pkg/cmd/export"
	"github.com/gospelux/gospelux/pkg/cmd/migrate"
	"github.com/gospelux/gospelux/pkg/cmd/reconcile"
	"github.com/gospelux/gospelux/pkg/cmd/serve"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("gospelux", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "gospelux [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newMigrateCommand(),
			newServeCommand(),
			newReconcileCommand(),
			newExportCommand(),
			newSongCommand(),
		},
	}
}

func newSongCommand() *ffcli.Command {
	cmd := "song"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &gospelux.Config{}
	fs.StringVar(&cfg.Key, "suno-key", "", "suno api key")
	fs.StringVar(&cfg.Model, "suno-model", "", "suno model version")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy")
	fs.DurationVar(&cfg.Wait, "wait", 10*time.Second, "wait time between polls")
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")

	var prompt, style, title string
	var instrumental bool
	fs.StringVar(&prompt, "prompt", "", "prompt to autogenerate the song")
	fs.StringVar(&style, "style", "", "style of the song")
	fs.StringVar(&title, "title", "", "title for the song")
	fs.BoolVar(&instrumental, "instrumental", false, "instrumental song")
	var output string
	fs.StringVar(&output, "output", "", "output file or folder")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("gospelux %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("GOSPELUX"),
		},
		ShortHelp: fmt.Sprintf("gospelux %s action", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return gospelux.GenerateSong(ctx, cfg, prompt, style, title, instrumental, output)
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "gospelux version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func newMigrateCommand() *ffcli.Command {
	cmd := "migrate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}

	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("gospelux %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("GOSPELUX"),
		},
		ShortHelp: fmt.Sprintf("gospelux %s action", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return migrate.Run(ctx, cfg)
		},
	}
}

func newServeCommand() *ffcli.Command {
	cmd := "serve"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &serve.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.FSType, "fs-type", "", "fs type (local, s3, telegram)")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "path for local, key:secret@bucket.region for s3, token@chat for telegram")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy to use")

	fs.StringVar(&cfg.Addr, "addr", ":1337", "address to listen on")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "public base url used to build provider callback urls")
	fsMapVar(fs, &cfg.Credentials, "creds", nil, "credentials to use (semicolon separated) Example: user1:pass1;user2:pass2")

	fs.StringVar(&cfg.SunoKey, "suno-key", "", "suno api key")
	fs.StringVar(&cfg.SunoModel, "suno-model", "", "suno model version")
	fs.StringVar(&cfg.HeygenKey, "heygen-key", "", "heygen api key")
	fs.StringVar(&cfg.OpenAIKey, "openai-key", "", "openai api key")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", "", "openai model")
	fs.StringVar(&cfg.BibleKey, "bible-key", "", "api.bible api key (optional)")
	fs.StringVar(&cfg.BibleID, "bible-id", "", "api.bible translation id")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("gospelux %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("GOSPELUX"),
		},
		ShortHelp: fmt.Sprintf("gospelux %s action", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return serve.Serve(ctx, cfg)
		},
	}
}

func newReconcileCommand() *ffcli.Command {
	cmd := "reconcile"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &reconcile.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.FSType, "fs-type", "", "fs type (local, s3, telegram)")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "path for local, key:secret@bucket.region for s3, token@chat for telegram")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy to use")

	fs.StringVar(&cfg.PublicURL, "public-url", "", "public base url used to build provider callback urls")
	fs.DurationVar(&cfg.Interval, "interval", 1*time.Minute, "time between sweeps")
	fs.IntVar(&cfg.Batch, "batch", 5, "max jobs per sweep phase")
	fs.BoolVar(&cfg.Once, "once", false, "run a single sweep and exit")

	fs.StringVar(&cfg.SunoKey, "suno-key", "", "suno api key")
	fs.StringVar(&cfg.SunoModel, "suno-model", "", "suno model version")
	fs.StringVar(&cfg.HeygenKey, "heygen-key", "", "heygen api key")
	fs.StringVar(&cfg.OpenAIKey, "openai-key", "", "openai api key")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", "", "openai model")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("gospelux %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("GOSPELUX"),
		},
		ShortHelp: fmt.Sprintf("gospelux %s action", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return reconcile.Run(ctx, cfg)
		},
	}
}

func newExportCommand() *ffcli.Command {
	cmd := "export"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &export.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")

	fs.StringVar(&cfg.Output, "output", "jobs.csv", "output file (.csv or .json)")
	fs.StringVar(&cfg.Kind, "kind", "", "filter by kind (song, video)")
	fs.StringVar(&cfg.Status, "status", "", "filter by status (queued, processing, completed, failed)")
	fs.StringVar(&cfg.Owner, "owner", "", "filter by owner")
	fs.IntVar(&cfg.Limit, "limit", 0, "max jobs to export")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("gospelux %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("GOSPELUX"),
		},
		ShortHelp: fmt.Sprintf("gospelux %s action", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return export.Run(ctx, cfg)
		},
	}
}

type mapValue struct {
	v *map[string]string
}

func (m *mapValue) String() string {
	if m.v == nil {
		return ""
	}
	return fmt.Sprintf("%v", map[string]string(*m.v))
}

func (m *mapValue) Set(value string) error {
	if m.v == nil {
		return errors.New("nil map reference")
	}
	pairs := strings.Split(value, ";")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid map entry: %s", pair)
		}
		(*m.v)[parts[0]] = parts[1]
	}
	return nil
}

func fsMapVar(fs *flag.FlagSet, p *map[string]string, name string, value map[string]string, usage string) {
	if value == nil {
		value = make(map[string]string)
	}
	*p = value
	fs.Var(&mapValue{p}, name, usage)
}
