package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kursadbilgin/certmint/internal/directory"
	"github.com/kursadbilgin/certmint/internal/domain"
)

var (
	studentName    string
	studentAddress string
	studentEmail   string
	studentPhone   string
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Search or register students in the directory",
}

var studentsSearchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "List students whose name or address contains term",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := directory.NewClient(cfg.DirectoryURL)
		if err != nil {
			return err
		}

		term := ""
		if len(args) == 1 {
			term = args[0]
		}
		students, err := client.Search(cmd.Context(), term)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tADDRESS\tEMAIL\tPHONE")
		for _, s := range students {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Address, s.Email, s.Phone)
		}
		return tw.Flush()
	},
}

var studentsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a student",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := directory.NewClient(cfg.DirectoryURL)
		if err != nil {
			return err
		}

		student := domain.Student{
			Name:    studentName,
			Address: studentAddress,
			Email:   studentEmail,
			Phone:   studentPhone,
		}
		if err := client.Add(cmd.Context(), student); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "student %s added\n", student.Address)
		return nil
	},
}

func init() {
	studentsAddCmd.Flags().StringVar(&studentName, "name", "", "Student name")
	studentsAddCmd.Flags().StringVar(&studentAddress, "address", "", "Student wallet address")
	studentsAddCmd.Flags().StringVar(&studentEmail, "email", "", "Student email")
	studentsAddCmd.Flags().StringVar(&studentPhone, "phone", "", "Student phone")
	_ = studentsAddCmd.MarkFlagRequired("name")
	_ = studentsAddCmd.MarkFlagRequired("address")

	studentsCmd.AddCommand(studentsSearchCmd)
	studentsCmd.AddCommand(studentsAddCmd)
}
