/*
Copyright © 2021 Karsten Borgwaldt
*/
package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/UjOwtuc/bdup/internal/archive"
	"github.com/UjOwtuc/bdup/internal/manifest"
	"github.com/UjOwtuc/bdup/util"
)

// lsCmd represents the ls command
var lsCmd = &cobra.Command{
	Use:   "ls [client] [backup]",
	Short: "List clients, backups or backup contents",
	Long: `Without arguments, list all clients found in the archive. With a client
name, list that client's finished backups. With a client name and a backup
number, list the backup's manifest entries in a long listing format.

Example:
  bdup ls                # all clients
  bdup ls alice          # alice's backups
  bdup ls alice 2        # contents of alice's backup 0000002
`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := openArchive(cfg)
		if err != nil {
			return err
		}

		switch len(args) {
		case 0:
			return listClients(a)
		case 1:
			return listBackups(a, args[0])
		default:
			return listEntries(a, args[0], args[1])
		}
	},
}

func listClients(a *archive.Archive) error {
	clients, err := a.Clients()
	if err != nil {
		return err
	}
	for _, client := range clients {
		backups, err := a.Backups(client, warnStderr)
		if err != nil {
			warnStderr(err)
			continue
		}
		fmt.Printf("%s\t%d backups\n", client.Name, len(backups))
	}
	return nil
}

func listBackups(a *archive.Archive, name string) error {
	client, err := findClient(a, name)
	if err != nil {
		return err
	}
	backups, err := a.Backups(client, warnStderr)
	if err != nil {
		return err
	}
	for _, backup := range backups {
		var files int
		var bytes int64
		err := backup.Entries(func(entry archive.FileEntry) error {
			files++
			bytes += entry.Size
			return nil
		})
		if err != nil {
			warnStderr(err)
			continue
		}
		fmt.Printf("%s\t%d files\t%s\n", backup.DirName(), files, util.HumanReadableSize(bytes))
	}
	return nil
}

func listEntries(a *archive.Archive, name, number string) error {
	client, err := findClient(a, name)
	if err != nil {
		return err
	}
	id, err := strconv.ParseUint(number, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid backup number %q: %v", number, err)
	}

	backups, err := a.Backups(client, warnStderr)
	if err != nil {
		return err
	}
	for _, backup := range backups {
		if backup.ID != id {
			continue
		}
		return backup.Manifest(func(entry *manifest.Entry) error {
			if entry.Type == manifest.TypeUnknown {
				return nil
			}
			fmt.Println(entry)
			return nil
		})
	}
	return fmt.Errorf("client %s has no finished backup %d", name, id)
}

func findClient(a *archive.Archive, name string) (archive.Client, error) {
	clients, err := a.Clients()
	if err != nil {
		return archive.Client{}, err
	}
	for _, client := range clients {
		if client.Name == name {
			return client, nil
		}
	}
	return archive.Client{}, fmt.Errorf("no such client: %s", name)
}

func warnStderr(err error) {
	fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
