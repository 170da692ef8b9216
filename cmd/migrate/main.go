// migrate applies the audit ledger migrations: go run ./cmd/migrate -direction up
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/congo-pay/custody_auth/internal/config"
	"github.com/congo-pay/custody_auth/internal/db/migrate"
)

func main() {
	flagDirection := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	direction, err := migrate.ParseDirection(*flagDirection)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	dsn, err := config.LoadDatabaseURL()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := migrate.Run(dsn, direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
