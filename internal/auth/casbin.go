package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/util"
	sqlxadapter "github.com/memwey/casbin-sqlx-adapter"
)

// modelText is the RBAC model: a subject may act on a path pattern, and
// roles may inherit from other roles.
const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && r.act == p.act
`

// NewModel parses the authorization model.
func NewModel() (model.Model, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authorization model: %w", err)
	}
	return m, nil
}

// NewEnforcer creates and configures a new Casbin enforcer.
// Policies are stored in the casbin_rule table of the database reached by
// driverName and dsn, and are loaded before the enforcer is returned.
func NewEnforcer(driverName, dsn string) (*casbin.Enforcer, error) {
	m, err := NewModel()
	if err != nil {
		return nil, err
	}

	adapter, err := newAdapter(driverName, dsn)
	if err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	// keyMatch2 lets policies use path patterns such as "/pages/:name".
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	return enforcer, nil
}

// newAdapter opens the policy table. The adapter panics when it cannot
// connect or the table is missing; that is reported as an error instead.
func newAdapter(driverName, dsn string) (adapter *sqlxadapter.Adapter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to open policy table: %v", r)
		}
	}()
	return sqlxadapter.NewAdapterFromOptions(&sqlxadapter.AdapterOptions{
		DriverName:     driverName,
		DataSourceName: dsn,
		TableName:      "casbin_rule",
	}), nil
}
