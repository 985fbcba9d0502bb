package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli"

	"github.com/nyborg-rpa/rpa-core/internal/config"
	"github.com/nyborg-rpa/rpa-core/internal/credstore"
	"github.com/nyborg-rpa/rpa-core/internal/rdp"
)

// rdpServers are the robot hosts a session can be opened against.
var rdpServers = []string{"NBRPA0", "NBRPA1", "NBRPA2", "NBRPA3", "NBRPAS"}

var rdpLoginCmd = cli.Command{
	Name:   "rdp-login",
	Usage:  "Open an RDP session to a robot host with credentials from the vault",
	Action: rdpLoginAction,
}

func rdpLoginAction(c *cli.Context) error {
	ctx := context.Background()

	store, err := credstore.Open(config.LoadCredStoreConfig())
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer store.Close()

	names, err := store.Usernames(ctx)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	stdin := bufio.NewReader(os.Stdin)
	name, err := pick(stdin, "Vælg robot", names)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	host, err := pick(stdin, "Vælg server", rdpServers)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	login, err := store.Lookup(ctx, name, "Windows")
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	err = rdp.Start(ctx, rdp.Session{
		Host:       host,
		Username:   login.Username,
		Password:   login.Password,
		Fullscreen: true,
	})
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}

// pick prints a numbered menu and reads the chosen entry from the reader.
func pick(r *bufio.Reader, prompt string, options []string) (string, error) {
	fmt.Println(prompt + ":")
	for i, option := range options {
		fmt.Printf("  %d) %s\n", i+1, option)
	}
	fmt.Print("> ")

	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read selection: %w", err)
	}
	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(options) {
		return "", fmt.Errorf("invalid selection %q", strings.TrimSpace(line))
	}
	return options[choice-1], nil
}
