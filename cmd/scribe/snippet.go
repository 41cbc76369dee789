package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/scribe/pkg/client"
)

var snippetCmd = &cobra.Command{
	Use:   "snippet",
	Short: "Manage snippets on a running service",
}

func init() {
	snippetCmd.PersistentFlags().String("server", "http://localhost:8080", "Service address")
	snippetCmd.PersistentFlags().String("api-key", os.Getenv("SCRIBE_API_KEY"), "API key for writes")

	snippetCmd.AddCommand(snippetCreateCmd)
	snippetCmd.AddCommand(snippetListCmd)
	snippetCmd.AddCommand(snippetGetCmd)
	snippetCmd.AddCommand(snippetDeleteCmd)

	rootCmd.AddCommand(snippetCmd)
}

func snippetClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	apiKey, _ := cmd.Flags().GetString("api-key")
	return client.NewClient(server, apiKey)
}

var snippetCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a snippet",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		content, _ := cmd.Flags().GetString("content")
		author, _ := cmd.Flags().GetString("author")
		if content == "" {
			return fmt.Errorf("--content is required")
		}

		snippet, err := snippetClient(cmd).CreateSnippet(context.Background(), title, content, author)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Created snippet %s\n", snippet.ID)
		return nil
	},
}

var snippetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all snippets",
	RunE: func(cmd *cobra.Command, args []string) error {
		snippets, err := snippetClient(cmd).ListSnippets(context.Background())
		if err != nil {
			return err
		}
		if len(snippets) == 0 {
			fmt.Println("No snippets.")
			return nil
		}
		for _, s := range snippets {
			fmt.Printf("%s  %-20s  %s  %s\n", s.ID, s.Title, s.Author, s.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var snippetGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one snippet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snippet, err := snippetClient(cmd).GetSnippet(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ID:      %s\n", snippet.ID)
		fmt.Printf("Title:   %s\n", snippet.Title)
		fmt.Printf("Author:  %s\n", snippet.Author)
		fmt.Printf("Created: %s\n", snippet.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
		fmt.Println(snippet.Content)
		return nil
	},
}

var snippetDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a snippet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := snippetClient(cmd).DeleteSnippet(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println("✓ Deleted")
		return nil
	},
}

func init() {
	snippetCreateCmd.Flags().String("title", "", "Snippet title")
	snippetCreateCmd.Flags().String("content", "", "Snippet content (required)")
	snippetCreateCmd.Flags().String("author", "", "Author name")
}
