package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"rdolist/config"
	"rdolist/db"
	"rdolist/seed"
)

const usage = `usage: rdolist [-config file] <command>

commands:
  serve                    run the HTTP server (default)
  db init                  drop and recreate all tables
  db seed                  fill the database with fake data
  db reset                 init, then seed
  user delete -email ADDR  delete an account with its cards and todos
`

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches the command line. It returns the process exit code.
func run(args []string) int {
	defaultConfig := os.Getenv("CONFIG_FILE")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}

	fs := flag.NewFlagSet("rdolist", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "YAML configuration file")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("config: %v", err)
		return 1
	}

	rest := fs.Args()
	cmd := "serve"
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	store, err := db.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		log.Printf("database: %v", err)
		return 1
	}
	defer store.Close()

	switch cmd {
	case "serve":
		return serve(cfg, store)
	case "db":
		return dbCommand(cfg, store, rest)
	case "user":
		return userCommand(store, rest)
	}
	fmt.Fprint(os.Stderr, usage)
	return 2
}

func dbCommand(cfg config.Config, store *db.Store, args []string) int {
	if len(args) != 1 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	if cfg.IsProduction() {
		log.Printf("db %s: refused in production mode", args[0])
		return 1
	}

	ctx := context.Background()
	var err error
	switch args[0] {
	case "init":
		err = store.Reset(ctx)
	case "seed":
		if err = store.Migrate(ctx); err == nil {
			err = seedData(ctx, store)
		}
	case "reset":
		if err = store.Reset(ctx); err == nil {
			err = seedData(ctx, store)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	if err != nil {
		log.Printf("db %s: %v", args[0], err)
		return 1
	}
	log.Printf("db %s: done", args[0])
	return 0
}

func seedData(ctx context.Context, store *db.Store) error {
	res, err := seed.Run(ctx, store, seed.DefaultOptions())
	if err != nil {
		return err
	}
	log.Printf("seeded %d users, %d cards, %d todos (password %q)",
		len(res.Users), len(res.Cards), len(res.Todos), seed.Password)
	return nil
}

func userCommand(store *db.Store, args []string) int {
	if len(args) == 0 || args[0] != "delete" {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	fs := flag.NewFlagSet("user delete", flag.ContinueOnError)
	email := fs.String("email", "", "email of the account to delete")
	if err := fs.Parse(args[1:]); err != nil || *email == "" {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	ctx := context.Background()
	u, err := store.UserByEmail(ctx, *email)
	if errors.Is(err, db.ErrNotFound) {
		log.Printf("user delete: no account for %s", *email)
		return 1
	}
	if err == nil {
		err = store.DeleteUser(ctx, u.ID)
	}
	if err != nil {
		log.Printf("user delete: %v", err)
		return 1
	}
	log.Printf("user delete: removed %s", *email)
	return 0
}
