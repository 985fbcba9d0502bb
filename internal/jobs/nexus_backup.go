package jobs

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nyborg-rpa/rpa-core/internal/config"
	"github.com/nyborg-rpa/rpa-core/internal/connector/graph"
	"github.com/nyborg-rpa/rpa-core/internal/job"
)

// backupRetention is how long dated backup folders stay on the emergency
// drive before they are pruned.
const backupRetention = 3 * 24 * time.Hour

func init() {
	job.Register(&job.Definition{
		Name:        "nexus-backup",
		Description: "Export Nexus route list calendars as PDF to the emergency drive",
		Run:         runNexusBackup,
	})
}

// routeList is one row of the route list CSV: the calendar name and whether
// it is a night route.
type routeList struct {
	Name  string
	Night bool
}

func runNexusBackup(ctx context.Context, params job.Params) (any, error) {
	recipientsParam, err := params.String("recipients")
	if err != nil {
		return nil, err
	}
	recipients, err := splitRecipients(recipientsParam)
	if err != nil {
		return nil, err
	}

	nexusCfg := config.LoadNexusConfig()
	client, err := newNexusClient(ctx)
	if err != nil {
		return nil, err
	}

	routeLists, err := readRouteListCSV(nexusCfg.EmergencyCSV)
	if err != nil {
		return nil, err
	}

	store, storeCfg, err := newObjectStore()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	today := now.Format("2006-01-02")

	var errorMessages []string
	exported := 0
	for _, route := range routeLists {
		routeDir := filepath.Join(nexusCfg.EmergencyDrive, today, route.Name)
		if err := os.MkdirAll(routeDir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", routeDir, err)
		}

		log.Printf("fetching %s (night: %v)", route.Name, route.Night)
		cal, err := client.CalendarByName(ctx, route.Name)
		if err != nil {
			errorMessages = append(errorMessages, fmt.Sprintf("Error fetching calendar for %s: %v", route.Name, err))
			continue
		}

		// Cover yesterday's gaps and the coming days in one run.
		for offset := -3; offset <= 3; offset++ {
			date := now.AddDate(0, 0, offset)
			dest := filepath.Join(routeDir, fmt.Sprintf("%s_%s.pdf", route.Name, date.Format("2006-01-02")))
			if _, err := os.Stat(dest); err == nil {
				continue
			}

			if err := client.ExportCalendarPDF(ctx, cal, date, route.Night, dest); err != nil {
				errorMessages = append(errorMessages,
					fmt.Sprintf("Error fetching calendar for %s on %s: %v", route.Name, date.Format("2006-01-02"), err))
				break
			}
			log.Printf("%s", dest)
			exported++

			if store != nil {
				object := fmt.Sprintf("%s/%s/%s", today, route.Name, filepath.Base(dest))
				if _, err := store.FPutObject(ctx, storeCfg.Bucket, object, dest,
					minio.PutObjectOptions{ContentType: "application/pdf"}); err != nil {
					log.Printf("mirror %s to object store: %v", object, err)
				}
			}
		}
	}

	if len(errorMessages) > 0 {
		if err := sendBackupErrorMail(ctx, recipients, errorMessages); err != nil {
			return nil, err
		}
	}

	if err := pruneBackupFolders(nexusCfg.EmergencyDrive, now); err != nil {
		return nil, err
	}

	return map[string]any{"exported": exported, "errors": len(errorMessages)}, nil
}

// newObjectStore builds the minio client used to mirror the backups offsite.
// Mirroring is optional: without an endpoint configured the backups only land
// on the emergency drive.
func newObjectStore() (*minio.Client, *config.ObjectStoreConfig, error) {
	cfg := config.LoadObjectStoreConfig()
	if cfg.Endpoint == "" {
		return nil, cfg, nil
	}

	store, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("object store: %w", err)
	}
	return store, cfg, nil
}

// readRouteListCSV reads the route list file. The file comes from Excel, so
// it may carry a BOM and use either comma or semicolon separators.
func readRouteListCSV(path string) ([]routeList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route list %s: %w", path, err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	separator := ','
	if line, _, _ := strings.Cut(text, "\n"); strings.Count(line, ";") > strings.Count(line, ",") {
		separator = ';'
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = separator
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse route list %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("route list %s has no rows", path)
	}

	nameCol, typeCol := -1, -1
	for i, col := range records[0] {
		switch strings.TrimSpace(col) {
		case "Køreliste":
			nameCol = i
		case "Type":
			typeCol = i
		}
	}
	if nameCol < 0 || typeCol < 0 {
		return nil, fmt.Errorf("route list %s missing Køreliste/Type columns: %v", path, records[0])
	}

	var routes []routeList
	for _, record := range records[1:] {
		routes = append(routes, routeList{
			Name:  strings.TrimSpace(record[nameCol]),
			Night: strings.EqualFold(strings.TrimSpace(record[typeCol]), "nat"),
		})
	}
	return routes, nil
}

func sendBackupErrorMail(ctx context.Context, recipients, messages []string) error {
	client, cfg, err := newGraphClient(ctx)
	if err != nil {
		return err
	}

	var content strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&content, "<p>%s</p>\n", msg)
	}

	return client.SendMail(ctx, &graph.Mail{
		Sender:     cfg.Mailbox,
		Recipients: recipients,
		Subject:    "Beredskabsdrev - Fejl ved hentning af kalendere",
		Body:       mailBody(content.String()),
	})
}

// pruneBackupFolders removes dated folders older than the retention window.
// Folders whose name is not a date are left alone.
func pruneBackupFolders(drive string, now time.Time) error {
	entries, err := os.ReadDir(drive)
	if err != nil {
		return fmt.Errorf("read emergency drive %s: %w", drive, err)
	}

	cutoff := now.Add(-backupRetention)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folderDate, err := time.Parse("2006-01-02", entry.Name())
		if err != nil {
			continue
		}
		if folderDate.Before(cutoff) {
			log.Printf("pruning %s", entry.Name())
			if err := os.RemoveAll(filepath.Join(drive, entry.Name())); err != nil {
				return fmt.Errorf("prune %s: %w", entry.Name(), err)
			}
		}
	}
	return nil
}
