package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/uptimeoor/pkg/models"
	"github.com/ethpandaops/uptimeoor/pkg/packagestore"
)

var (
	packageProject     string
	packageRoutine     string
	packageID          string
	packageFile        string
	packageContentType string
	packageOut         string
)

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Manage routine test packages",
}

var packagePutCmd = &cobra.Command{
	Use:   "put",
	Short: "Upload a test package to the configured storage",
	RunE:  runPackagePut,
}

var packageGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Download a test package from the configured storage",
	RunE:  runPackageGet,
}

func init() {
	rootCmd.AddCommand(packageCmd)
	packageCmd.AddCommand(packagePutCmd, packageGetCmd)

	packageCmd.PersistentFlags().StringVar(&packageProject, "project", "", "Project ID")
	_ = packageCmd.MarkPersistentFlagRequired("project")

	packagePutCmd.Flags().StringVar(&packageFile, "file", "", "Path to the package file")
	packagePutCmd.Flags().StringVar(&packageRoutine, "routine", "", "Routine ID the package belongs to")
	packagePutCmd.Flags().StringVar(&packageID, "id", "", "Package ID (generated when empty)")
	packagePutCmd.Flags().StringVar(&packageContentType, "content-type", "", "Content type")
	packagePutCmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", `Output format: "yaml" or "json"`)
	_ = packagePutCmd.MarkFlagRequired("file")

	packageGetCmd.Flags().StringVar(&packageID, "id", "", "Package ID")
	packageGetCmd.Flags().StringVar(&packageOut, "out", "", "Write the package content to this path")
	_ = packageGetCmd.MarkFlagRequired("id")
	_ = packageGetCmd.MarkFlagRequired("out")
}

func openPackageStore(cmd *cobra.Command) (packagestore.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	ps, err := packagestore.New(log, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("creating package store: %w", err)
	}

	if err := ps.Preflight(cmd.Context()); err != nil {
		return nil, fmt.Errorf("package storage preflight: %w", err)
	}

	return ps, nil
}

func runPackagePut(cmd *cobra.Command, _ []string) error {
	content, err := os.ReadFile(packageFile) //nolint:gosec // user-supplied input file
	if err != nil {
		return fmt.Errorf("reading %s: %w", packageFile, err)
	}

	file, err := models.NewPackageFile(models.PackageFile{
		ID:          packageID,
		ProjectID:   packageProject,
		RoutineID:   packageRoutine,
		Name:        filepath.Base(packageFile),
		ContentType: packageContentType,
		Content:     content,
	}, time.Now())
	if err != nil {
		return err
	}

	ps, err := openPackageStore(cmd)
	if err != nil {
		return err
	}

	if err := ps.Put(cmd.Context(), file); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"id":     file.ID,
		"size":   file.Size,
		"sha256": file.SHA256,
	}).Info("Package stored")

	return writeOutput(cmd.OutOrStdout(), outputFormat, file)
}

func runPackageGet(cmd *cobra.Command, _ []string) error {
	ps, err := openPackageStore(cmd)
	if err != nil {
		return err
	}

	file, err := ps.Get(cmd.Context(), packageProject, packageID)
	if err != nil {
		return err
	}

	if err := os.WriteFile(packageOut, file.Content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", packageOut, err)
	}

	log.WithFields(logrus.Fields{
		"id":   file.ID,
		"name": file.Name,
		"out":  packageOut,
	}).Info("Package written")

	return nil
}
