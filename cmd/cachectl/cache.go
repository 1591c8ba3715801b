package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/chainkv/pkg/proxy"
	"github.com/cuemby/chainkv/pkg/transport"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Operate on a named cache's clustered tier",
}

func dialProxy(cmd *cobra.Command) (*proxy.ServerStoreProxy, *transport.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	certDir, _ := cmd.Flags().GetString("cert-dir")
	alias, _ := cmd.Flags().GetString("alias")

	client, err := transport.NewClient(server, certDir)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", server, err)
	}
	return proxy.NewServerStoreProxy(alias, client), client, nil
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Resolve a key's current value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, client, err := dialProxy(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		value, present, err := p.Get([]byte(args[0]))
		if err != nil {
			return err
		}
		if !present {
			fmt.Println("(absent)")
			return nil
		}
		fmt.Println(string(value))
		return nil
	},
}

var cachePutCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Unconditionally install a value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, client, err := dialProxy(cmd)
		if err != nil {
			return err
		}
		defer client.Close()
		return p.Put([]byte(args[0]), []byte(args[1]))
	},
}

var cacheRemoveCmd = &cobra.Command{
	Use:   "remove <key>",
	Short: "Unconditionally remove a key's mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, client, err := dialProxy(cmd)
		if err != nil {
			return err
		}
		defer client.Close()
		return p.Remove([]byte(args[0]))
	},
}

var cachePutIfAbsentCmd = &cobra.Command{
	Use:   "put-if-absent <key> <value>",
	Short: "Install a value only if the key is currently absent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, client, err := dialProxy(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		prev, present, err := p.PutIfAbsent([]byte(args[0]), []byte(args[1]))
		if err != nil {
			return err
		}
		if present {
			fmt.Printf("no-op, already present: %s\n", prev)
			return nil
		}
		fmt.Println("installed")
		return nil
	},
}

var cacheReplaceCmd = &cobra.Command{
	Use:   "replace <key> <value>",
	Short: "Install a value only if the key is currently present",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, client, err := dialProxy(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		prev, present, err := p.Replace([]byte(args[0]), []byte(args[1]))
		if err != nil {
			return err
		}
		if !present {
			fmt.Println("no-op, key was absent")
			return nil
		}
		fmt.Printf("replaced, previous value: %s\n", prev)
		return nil
	},
}

var cacheReplaceConditionalCmd = &cobra.Command{
	Use:   "replace-conditional <key> <old-value> <new-value>",
	Short: "Install new-value only if the key's current value equals old-value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, client, err := dialProxy(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		applied, err := p.ReplaceConditional([]byte(args[0]), []byte(args[1]), []byte(args[2]))
		if err != nil {
			return err
		}
		fmt.Println(applied)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every chain in this cache's clustered tier",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, client, err := dialProxy(cmd)
		if err != nil {
			return err
		}
		defer client.Close()
		return p.Clear()
	},
}

func init() {
	subcommands := []*cobra.Command{
		cacheGetCmd, cachePutCmd, cacheRemoveCmd, cachePutIfAbsentCmd,
		cacheReplaceCmd, cacheReplaceConditionalCmd, cacheClearCmd,
	}
	for _, c := range subcommands {
		c.Flags().String("server", "127.0.0.1:7401", "entity server address")
		c.Flags().String("cert-dir", "", "client mTLS certificate directory")
		c.Flags().String("alias", "", "cache alias to operate on")
		c.MarkFlagRequired("alias")
		cacheCmd.AddCommand(c)
	}
}
