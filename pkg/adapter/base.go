package adapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/leapstack-labs/taskforge/pkg/core"
)

// Placeholder is the bind parameter style of a SQL driver.
type Placeholder int

// Placeholder styles.
const (
	// Question is the ? style (SQLite).
	Question Placeholder = iota
	// Dollar is the $1 style (PostgreSQL).
	Dollar
)

// Rebind rewrites the ? placeholders of query into the receiver's style.
// Queries must not contain literal question marks.
func (p Placeholder) Rebind(query string) string {
	if p != Dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BaseSQLBackend provides the database/sql catalog implementation shared by
// backends. Embed it in concrete backends and provide AllocateTaskCode and
// Migrate.
type BaseSQLBackend struct {
	DB          *sql.DB
	Placeholder Placeholder
	Logger      *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLBackend) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLBackend) IsConnected() bool {
	return b.DB != nil
}

func (b *BaseSQLBackend) q(query string) string {
	return b.Placeholder.Rebind(query)
}

// closureCTE selects the parameters bound to a template plus every parameter
// gating them, transitively. UNION keeps it finite on cyclic data.
const closureCTE = `WITH RECURSIVE closure(id) AS (
	SELECT parameter_id FROM template_parameters WHERE template_id = ?
	UNION
	SELECT d.parent_parameter_id FROM dependencies d JOIN closure c ON d.child_parameter_id = c.id
)
`

// LoadCatalog implements core.CatalogStore.
func (b *BaseSQLBackend) LoadCatalog(ctx context.Context, id core.TemplateID) (*core.Catalog, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	t, err := b.scanTemplate(b.DB.QueryRowContext(ctx,
		b.q(`SELECT id, code, name, name_expression FROM templates WHERE id = ?`), id))
	if err != nil {
		return nil, err
	}
	if t.Parameters, err = b.loadBindings(ctx, b.DB, id); err != nil {
		return nil, err
	}

	c := &core.Catalog{Template: *t}
	if c.Parameters, err = b.loadParameters(ctx, id); err != nil {
		return nil, err
	}
	if c.Options, err = b.loadOptions(ctx, id); err != nil {
		return nil, err
	}
	if c.Dependencies, err = b.loadDependencies(ctx, id); err != nil {
		return nil, err
	}
	if c.DependencyOptions, err = b.loadDependencyOptions(ctx, id); err != nil {
		return nil, err
	}

	if b.Logger != nil {
		b.Logger.Debug("catalog loaded",
			"template", t.Code,
			"parameters", len(c.Parameters),
			"options", len(c.Options),
			"dependencies", len(c.Dependencies))
	}
	return c, nil
}

// GetTemplateByCode implements core.CatalogStore.
func (b *BaseSQLBackend) GetTemplateByCode(ctx context.Context, code string) (*core.Template, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	t, err := b.scanTemplate(b.DB.QueryRowContext(ctx,
		b.q(`SELECT id, code, name, name_expression FROM templates WHERE code = ?`), code))
	if err != nil {
		return nil, err
	}
	if t.Parameters, err = b.loadBindings(ctx, b.DB, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTemplates implements core.CatalogStore. Templates are ordered by code.
func (b *BaseSQLBackend) ListTemplates(ctx context.Context) ([]*core.Template, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := b.DB.QueryContext(ctx, `SELECT id, code, name, name_expression FROM templates ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var templates []*core.Template
	byID := make(map[core.TemplateID]*core.Template)
	for rows.Next() {
		t := &core.Template{}
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.NameExpression); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	bindings, err := b.DB.QueryContext(ctx,
		`SELECT template_id, parameter_id, position, required, condition
		 FROM template_parameters ORDER BY template_id, position, parameter_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list template parameters: %w", err)
	}
	defer func() { _ = bindings.Close() }()

	for bindings.Next() {
		var templateID core.TemplateID
		tp, err := scanBinding(bindings, &templateID)
		if err != nil {
			return nil, err
		}
		if t, ok := byID[templateID]; ok {
			t.Parameters = append(t.Parameters, tp)
		}
	}
	if err := bindings.Err(); err != nil {
		return nil, fmt.Errorf("error iterating template parameters: %w", err)
	}

	return templates, nil
}

// ListTasks returns allocated tasks, newest first.
func (b *BaseSQLBackend) ListTasks(ctx context.Context, templateCode string, limit int) ([]core.Task, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	query := `SELECT t.id, t.code, t.template_id, t.selection, t.created_at
		FROM tasks t JOIN templates tp ON tp.id = t.template_id
		WHERE (? = '' OR tp.code = ?)
		ORDER BY t.created_at DESC, t.code DESC`
	args := []any{templateCode, templateCode}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := b.DB.QueryContext(ctx, b.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []core.Task
	for rows.Next() {
		var task core.Task
		var selection []byte
		if err := rows.Scan(&task.ID, &task.Code, &task.TemplateID, &selection, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if err := json.Unmarshal(selection, &task.Selection); err != nil {
			return nil, fmt.Errorf("failed to decode selection of task %s: %w", task.Code, err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// Update implements Backend.Update.
func (b *BaseSQLBackend) Update(ctx context.Context, fn func(w CatalogWriter) error) error {
	return b.InTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqlWriter{db: tx, placeholder: b.Placeholder})
	})
}

// InTx runs fn in a transaction.
func (b *BaseSQLBackend) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// EncodeSelection serializes a resolved selection for storage or for a
// server-side allocator.
func EncodeSelection(sel map[string]core.OptionID) ([]byte, error) {
	if sel == nil {
		sel = map[string]core.OptionID{}
	}
	data, err := json.Marshal(sel)
	if err != nil {
		return nil, fmt.Errorf("failed to encode selection: %w", err)
	}
	return data, nil
}

// InsertTask records an allocated task.
func (b *BaseSQLBackend) InsertTask(ctx context.Context, tx *sql.Tx, task core.Task) error {
	selection, err := EncodeSelection(task.Selection)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		b.q(`INSERT INTO tasks (id, code, template_id, selection, created_at) VALUES (?, ?, ?, ?, ?)`),
		task.ID, task.Code, task.TemplateID, string(selection), task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (b *BaseSQLBackend) scanTemplate(row *sql.Row) (*core.Template, error) {
	t := &core.Template{}
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.NameExpression)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template not found: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

func (b *BaseSQLBackend) loadBindings(ctx context.Context, db querier, id core.TemplateID) ([]core.TemplateParameter, error) {
	rows, err := db.QueryContext(ctx,
		b.q(`SELECT template_id, parameter_id, position, required, condition
		 FROM template_parameters WHERE template_id = ? ORDER BY position, parameter_id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load template parameters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bindings []core.TemplateParameter
	for rows.Next() {
		var templateID core.TemplateID
		tp, err := scanBinding(rows, &templateID)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating template parameters: %w", err)
	}
	return bindings, nil
}

func scanBinding(rows *sql.Rows, templateID *core.TemplateID) (core.TemplateParameter, error) {
	var tp core.TemplateParameter
	var condition sql.NullString
	if err := rows.Scan(templateID, &tp.ParameterID, &tp.Position, &tp.Required, &condition); err != nil {
		return tp, fmt.Errorf("failed to scan template parameter: %w", err)
	}
	tp.Condition = condition.String
	return tp, nil
}

func (b *BaseSQLBackend) loadParameters(ctx context.Context, id core.TemplateID) ([]core.Parameter, error) {
	rows, err := b.DB.QueryContext(ctx, b.q(closureCTE+
		`SELECT p.id, p.slug, p.label, p.expression_template, p.position
		 FROM parameters p JOIN closure c ON c.id = p.id
		 ORDER BY p.position, p.id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load parameters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var params []core.Parameter
	for rows.Next() {
		var p core.Parameter
		var expr sql.NullString
		if err := rows.Scan(&p.ID, &p.Slug, &p.Label, &expr, &p.Position); err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		p.ExpressionTemplate = expr.String
		params = append(params, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parameters: %w", err)
	}
	return params, nil
}

func (b *BaseSQLBackend) loadOptions(ctx context.Context, id core.TemplateID) ([]core.Option, error) {
	rows, err := b.DB.QueryContext(ctx, b.q(closureCTE+
		`SELECT o.id, o.parameter_id, o.name, o.label, o.position
		 FROM options o JOIN closure c ON c.id = o.parameter_id
		 ORDER BY o.parameter_id, o.position, o.id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load options: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var options []core.Option
	for rows.Next() {
		var o core.Option
		if err := rows.Scan(&o.ID, &o.ParameterID, &o.Name, &o.Label, &o.Position); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating options: %w", err)
	}
	return options, nil
}

func (b *BaseSQLBackend) loadDependencies(ctx context.Context, id core.TemplateID) ([]core.Dependency, error) {
	rows, err := b.DB.QueryContext(ctx, b.q(closureCTE+
		`SELECT d.id, d.parent_parameter_id, d.parent_option_id, d.child_parameter_id
		 FROM dependencies d JOIN closure c ON c.id = d.child_parameter_id
		 ORDER BY d.id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load dependencies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var deps []core.Dependency
	for rows.Next() {
		var d core.Dependency
		if err := rows.Scan(&d.ID, &d.ParentParameterID, &d.ParentOptionID, &d.ChildParameterID); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}
	return deps, nil
}

func (b *BaseSQLBackend) loadDependencyOptions(ctx context.Context, id core.TemplateID) ([]core.DependencyOption, error) {
	rows, err := b.DB.QueryContext(ctx, b.q(closureCTE+
		`SELECT dopt.dependency_id, dopt.option_id
		 FROM dependency_options dopt
		 JOIN dependencies d ON d.id = dopt.dependency_id
		 JOIN closure c ON c.id = d.child_parameter_id
		 ORDER BY dopt.dependency_id, dopt.option_id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load dependency options: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var depOpts []core.DependencyOption
	for rows.Next() {
		var do core.DependencyOption
		if err := rows.Scan(&do.DependencyID, &do.OptionID); err != nil {
			return nil, fmt.Errorf("failed to scan dependency option: %w", err)
		}
		depOpts = append(depOpts, do)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependency options: %w", err)
	}
	return depOpts, nil
}

// sqlWriter implements CatalogWriter on a transaction.
type sqlWriter struct {
	db          querier
	placeholder Placeholder
}

func (w *sqlWriter) q(query string) string {
	return w.placeholder.Rebind(query)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (w *sqlWriter) SaveParameter(ctx context.Context, p *core.Parameter) error {
	err := w.db.QueryRowContext(ctx, w.q(
		`INSERT INTO parameters (slug, label, expression_template, position) VALUES (?, ?, ?, ?)
		 ON CONFLICT (slug) DO UPDATE SET
			label = excluded.label,
			expression_template = excluded.expression_template,
			position = excluded.position
		 RETURNING id`),
		p.Slug, p.Label, nullable(p.ExpressionTemplate), p.Position,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to save parameter %s: %w", p.Slug, err)
	}
	return nil
}

func (w *sqlWriter) SaveOption(ctx context.Context, o *core.Option) error {
	err := w.db.QueryRowContext(ctx, w.q(
		`INSERT INTO options (parameter_id, name, label, position) VALUES (?, ?, ?, ?)
		 ON CONFLICT (parameter_id, name) DO UPDATE SET
			label = excluded.label,
			position = excluded.position
		 RETURNING id`),
		o.ParameterID, o.Name, o.Label, o.Position,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("failed to save option %s: %w", o.Name, err)
	}
	return nil
}

func (w *sqlWriter) SaveTemplate(ctx context.Context, t *core.Template) error {
	err := w.db.QueryRowContext(ctx, w.q(
		`INSERT INTO templates (code, name, name_expression) VALUES (?, ?, ?)
		 ON CONFLICT (code) DO UPDATE SET
			name = excluded.name,
			name_expression = excluded.name_expression
		 RETURNING id`),
		t.Code, t.Name, t.NameExpression,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", t.Code, err)
	}

	if _, err := w.db.ExecContext(ctx, w.q(`DELETE FROM template_parameters WHERE template_id = ?`), t.ID); err != nil {
		return fmt.Errorf("failed to clear bindings of template %s: %w", t.Code, err)
	}
	for _, tp := range t.Parameters {
		_, err := w.db.ExecContext(ctx, w.q(
			`INSERT INTO template_parameters (template_id, parameter_id, position, required, condition)
			 VALUES (?, ?, ?, ?, ?)`),
			t.ID, tp.ParameterID, tp.Position, tp.Required, nullable(tp.Condition))
		if err != nil {
			return fmt.Errorf("failed to bind parameter %d to template %s: %w", tp.ParameterID, t.Code, err)
		}
	}
	return nil
}

func (w *sqlWriter) SaveDependency(ctx context.Context, d *core.Dependency, allowed []core.OptionID) error {
	err := w.db.QueryRowContext(ctx, w.q(
		`INSERT INTO dependencies (parent_parameter_id, parent_option_id, child_parameter_id) VALUES (?, ?, ?)
		 ON CONFLICT (parent_parameter_id, parent_option_id, child_parameter_id) DO UPDATE SET
			child_parameter_id = excluded.child_parameter_id
		 RETURNING id`),
		d.ParentParameterID, d.ParentOptionID, d.ChildParameterID,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to save dependency: %w", err)
	}

	if _, err := w.db.ExecContext(ctx, w.q(`DELETE FROM dependency_options WHERE dependency_id = ?`), d.ID); err != nil {
		return fmt.Errorf("failed to clear options of dependency %d: %w", d.ID, err)
	}
	for _, id := range allowed {
		_, err := w.db.ExecContext(ctx, w.q(
			`INSERT INTO dependency_options (dependency_id, option_id) VALUES (?, ?)`), d.ID, id)
		if err != nil {
			return fmt.Errorf("failed to allow option %d on dependency %d: %w", id, d.ID, err)
		}
	}
	return nil
}
