package main

import (
	"context"
	"fmt"
	"os"

	"github.com/chzyer/readline"
	"github.com/robertkrimen/isatty"
	"github.com/spf13/cobra"
	"github.com/vilterp/nltemplate/pkg/server"
	"github.com/vilterp/nltemplate/pkg/session"
	"github.com/vilterp/nltemplate/pkg/template"
)

var shellURL string

// executor runs one shell line, locally or remotely.
type executor func(line string) (string, error)

func runShell(cmd *cobra.Command, args []string) error {
	exec, name, closer, err := newExecutor()
	if err != nil {
		return err
	}
	defer closer()

	isInputTty := isatty.Check(os.Stdin.Fd())
	if isInputTty {
		fmt.Println("nltemplate shell")
		fmt.Println("\\h for help")
	}

	prompt := ""
	if isInputTty {
		prompt = fmt.Sprintf("%s> ", name)
	}
	l, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       "/tmp/.nltemplate-history",
		InterruptPrompt:   "^C",
		EOFPrompt:         "bye!",
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer l.Close()

	for {
		line, readlineErr := l.Readline()
		if readlineErr != nil {
			if isInputTty {
				fmt.Println("bye!")
			}
			return nil
		}
		result, err := exec(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		if result != "" {
			fmt.Println(result)
		}
	}
}

func newExecutor() (executor, string, func(), error) {
	if shellURL != "" {
		client, err := server.NewClient(shellURL)
		if err != nil {
			return nil, "", nil, err
		}
		return client.Exec, shellURL, func() { client.Close() }, nil
	}

	var store *template.Store
	closer := func() {}
	if storePath != "" {
		var err error
		store, err = template.OpenStore(storePath, nil)
		if err != nil {
			return nil, "", nil, err
		}
		closer = func() { store.Close() }
	}
	s := session.New(context.Background(), store, nil, session.WithPolicy(metadataPolicy()))
	exec := func(line string) (string, error) {
		result, err := s.Exec(line)
		if err != nil {
			return "", err
		}
		if result.Output != "" {
			return result.Output, nil
		}
		return result.Ack, nil
	}
	return exec, "local", closer, nil
}
