package migratesvc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/yusufsyaifudin/boyong/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
)

// migrationTmpl is the body of a freshly scaffolded migration unit. It
// registers itself on import, so adding the file to the migrations package
// is all a developer needs to do.
var migrationTmpl = template.Must(template.New("migration").Parse(`package migrations

import (
	"context"

	"github.com/yusufsyaifudin/boyong/internal/catalog"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func init() {
	catalog.MustRegister(catalog.Definition{
		Version:     "{{.Version}}",
		Description: "{{.Description}}",
		Forward:     forward{{.Version}},
		Backward:    backward{{.Version}},
	})
}

func forward{{.Version}}(ctx context.Context, db *mongo.Database) error {
	panic("not implemented")
}

func backward{{.Version}}(ctx context.Context, db *mongo.Database) error {
	panic("not implemented")
}
`))

func (d *DefaultService) CreateMigration(ctx context.Context, input InputCreateMigration) (out OutCreateMigration, err error) {
	if err = validator.Validate(input); err != nil {
		return
	}

	slug := slugify(input.Name)
	if slug == "" {
		err = fmt.Errorf("migration name %q has no usable characters", input.Name)
		return
	}

	desc := strings.TrimSpace(input.Description)
	if desc == "" {
		desc = strings.ReplaceAll(slug, "_", " ")
	}

	version := time.Now().UTC().Format("20060102150405")
	filename := fmt.Sprintf("%s_%s.go", version, slug)
	path := filepath.Join(d.Config.MigrationsDir, filename)

	if err = os.MkdirAll(d.Config.MigrationsDir, 0o755); err != nil {
		err = fmt.Errorf("error create migrations dir: %w", err)
		return
	}

	var file *os.File
	file, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		err = fmt.Errorf("error create migration file %s: %w", path, err)
		return
	}

	err = migrationTmpl.Execute(file, map[string]string{
		"Version":     version,
		"Description": desc,
	})
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		err = fmt.Errorf("error write migration file %s: %w", path, err)
		return
	}

	ylog.Info(ctx, "migration unit scaffolded",
		ylog.KV("version", version),
		ylog.KV("path", path),
	)

	out = OutCreateMigration{
		Version:  version,
		Filename: filename,
		Path:     path,
	}
	return
}

// slugify reduces a free-form name to lowercase [a-z0-9_] with single
// underscores between words.
func slugify(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLower(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}
