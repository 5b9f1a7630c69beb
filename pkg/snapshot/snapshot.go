package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	pgcommands "github.com/habx/pg-commands"
	"go.uber.org/zap"
)

// SnapshotConfig holds the database connection and the snapshot file locations.
type SnapshotConfig struct {
	OutputFile string
	InputFile  string
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
}

// SnapshotService dumps and restores the Postgres entity store with pg_dump/pg_restore.
type SnapshotService struct {
	cfg *SnapshotConfig
	l   *zap.Logger
}

func NewSnapshotService(cfg *SnapshotConfig, l *zap.Logger) (*SnapshotService, error) {
	var err error

	cfg.InputFile, err = resolveFilePath(cfg.InputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input file path: %w", err)
	}
	cfg.OutputFile, err = resolveFilePath(cfg.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output file path: %w", err)
	}

	l.Sugar().Debugw("Resolved snapshot paths",
		zap.String("inputFile", cfg.InputFile),
		zap.String("outputFile", cfg.OutputFile),
	)

	return &SnapshotService{
		cfg: cfg,
		l:   l,
	}, nil
}

// resolveFilePath expands a leading ~ and makes the path absolute.
func resolveFilePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absPath, nil
}

// tempPathFor returns a unique sibling of path, so a partial dump never replaces a
// previous snapshot.
func tempPathFor(path string) string {
	return filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
}

func (s *SnapshotService) connection(dbName string) *pgcommands.Postgres {
	return &pgcommands.Postgres{
		Host:     s.cfg.Host,
		Port:     s.cfg.Port,
		DB:       dbName,
		Username: s.cfg.User,
		Password: s.cfg.Password,
	}
}

func (s *SnapshotService) CreateSnapshot() error {
	if s.cfg.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if s.cfg.OutputFile == "" {
		return fmt.Errorf("output path i.e. `output-file` must be specified")
	}

	dump, err := pgcommands.NewDump(s.connection(s.cfg.DbName))
	if err != nil {
		s.l.Sugar().Errorw("Failed to initialize pg_dump", zap.Error(err))
		return err
	}
	if s.cfg.SchemaName != "" {
		dump.Options = append(dump.Options, fmt.Sprintf("--schema=%s", s.cfg.SchemaName))
	}

	tmp := tempPathFor(s.cfg.OutputFile)
	dump.SetFileName(tmp)
	dumpExec := dump.Exec(pgcommands.ExecOptions{StreamPrint: false})
	if dumpExec.Error != nil {
		_ = os.Remove(tmp)
		s.l.Sugar().Errorw("Failed to create database snapshot",
			zap.Error(dumpExec.Error.Err),
			zap.String("output", dumpExec.Output),
		)
		return dumpExec.Error.Err
	}
	if err := os.Rename(tmp, s.cfg.OutputFile); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	s.l.Sugar().Infow("Created snapshot", zap.String("outputFile", s.cfg.OutputFile))
	return nil
}

func (s *SnapshotService) RestoreSnapshot() error {
	if s.cfg.InputFile == "" {
		return fmt.Errorf("restore snapshot file path i.e. `input-file` must be specified")
	}
	info, err := os.Stat(s.cfg.InputFile)
	if err != nil || info.IsDir() {
		return fmt.Errorf("snapshot file does not exist: %s", s.cfg.InputFile)
	}

	// the target database goes through --dbname so --if-exists drops land in it
	restore, err := pgcommands.NewRestore(s.connection(""))
	if err != nil {
		s.l.Sugar().Errorw("Failed to initialize pg_restore", zap.Error(err))
		return err
	}
	restore.Options = append(restore.Options, "--if-exists", fmt.Sprintf("--dbname=%s", s.cfg.DbName))
	if s.cfg.SchemaName != "" {
		restore.SetSchemas([]string{s.cfg.SchemaName})
	}

	restoreExec := restore.Exec(s.cfg.InputFile, pgcommands.ExecOptions{StreamPrint: false})
	if restoreExec.Error != nil {
		s.l.Sugar().Errorw("Failed to restore from snapshot",
			zap.Error(restoreExec.Error.Err),
			zap.String("output", restoreExec.Output),
		)
		return restoreExec.Error.Err
	}

	s.l.Sugar().Infow("Restored snapshot", zap.String("inputFile", s.cfg.InputFile))
	return nil
}
