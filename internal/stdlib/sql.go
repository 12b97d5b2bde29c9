package stdlib

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nyml2003/kaubo/internal/runtime"
	"github.com/nyml2003/kaubo/internal/typesystem"
)

// SQLModuleName is the global name of the optional sql module.
const SQLModuleName = "sql"

// Open database handles, keyed by the integer handle exposed to scripts.
var (
	sqlRegistry   = make(map[int64]*sql.DB)
	sqlNextID     int64 = 1
	sqlRegistryMu sync.Mutex
)

func registerDB(db *sql.DB) int64 {
	sqlRegistryMu.Lock()
	defer sqlRegistryMu.Unlock()
	id := sqlNextID
	sqlNextID++
	sqlRegistry[id] = db
	return id
}

func lookupDB(handle runtime.Value) (*sql.DB, error) {
	if !handle.IsInt() {
		return nil, fmt.Errorf("expected a database handle, got a non-int value")
	}
	sqlRegistryMu.Lock()
	defer sqlRegistryMu.Unlock()
	db, ok := sqlRegistry[handle.AsInt()]
	if !ok {
		return nil, fmt.Errorf("unknown database handle %d", handle.AsInt())
	}
	return db, nil
}

// SQLMembers returns the sql module layout in slot order.
func SQLMembers() []Member {
	str := typesystem.String
	intT := typesystem.Int
	return []Member{
		{Name: "open", Type: typesystem.Func{Params: []typesystem.Type{str}, Return: intT}, Arity: 1},
		{Name: "exec", Type: typesystem.Func{Params: []typesystem.Type{intT, str}, Return: intT}, Arity: 2},
		{Name: "query", Type: typesystem.Func{Params: []typesystem.Type{intT, str}, Return: typesystem.List{Elem: typesystem.Json{}}}, Arity: 2},
		{Name: "close", Type: typesystem.Func{Params: []typesystem.Type{intT}, Return: typesystem.Void}, Arity: 1},
	}
}

// DeclareSQLShape registers the sql module shape at compile time. Hosts opt
// in; the core std module never depends on it.
func DeclareSQLShape(st *runtime.ShapeTable) *runtime.Shape {
	members := SQLMembers()
	names := make([]string, len(members))
	types := make([]typesystem.Type, len(members))
	for i, m := range members {
		names[i] = m.Name
		types[i] = m.Type
	}
	return st.NewReserved(runtime.ShapeSQL, SQLModuleName, names, types)
}

// InstallSQL creates the sql natives over SQLite and registers the module.
func InstallSQL(rt *runtime.Runtime, shape *runtime.Shape) runtime.Value {
	fns := map[string]runtime.NativeFn{
		"open":  sqlOpen,
		"exec":  sqlExec,
		"query": sqlQuery,
		"close": sqlClose,
	}
	members := SQLMembers()
	slots := make([]runtime.Value, len(members))
	for i, m := range members {
		slots[i] = rt.NewNative(SQLModuleName+"."+m.Name, m.Arity, fns[m.Name])
	}
	module := rt.NewModule(shape, slots)
	rt.RegisterModule(SQLModuleName, module)
	return module
}

func sqlOpen(rt *runtime.Runtime, args []runtime.Value) (runtime.Value, error) {
	if args[0].TagOf() != runtime.TagString {
		return runtime.NullValue, fmt.Errorf("sql.open expects a path string")
	}
	db, err := sql.Open("sqlite", rt.StringOf(args[0]))
	if err != nil {
		return runtime.NullValue, fmt.Errorf("sql.open: %v", err)
	}
	return runtime.IntVal(registerDB(db)), nil
}

func sqlExec(rt *runtime.Runtime, args []runtime.Value) (runtime.Value, error) {
	db, err := lookupDB(args[0])
	if err != nil {
		return runtime.NullValue, err
	}
	if args[1].TagOf() != runtime.TagString {
		return runtime.NullValue, fmt.Errorf("sql.exec expects a query string")
	}
	res, err := db.Exec(rt.StringOf(args[1]))
	if err != nil {
		return runtime.NullValue, fmt.Errorf("sql.exec: %v", err)
	}
	affected, _ := res.RowsAffected()
	return runtime.IntVal(affected), nil
}

// sqlQuery returns the result set as a list of json objects, one per row,
// keyed by column name.
func sqlQuery(rt *runtime.Runtime, args []runtime.Value) (runtime.Value, error) {
	db, err := lookupDB(args[0])
	if err != nil {
		return runtime.NullValue, err
	}
	if args[1].TagOf() != runtime.TagString {
		return runtime.NullValue, fmt.Errorf("sql.query expects a query string")
	}
	rows, err := db.Query(rt.StringOf(args[1]))
	if err != nil {
		return runtime.NullValue, fmt.Errorf("sql.query: %v", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return runtime.NullValue, fmt.Errorf("sql.query: %v", err)
	}
	var result []runtime.Value
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return runtime.NullValue, fmt.Errorf("sql.query: %v", err)
		}
		obj, v := rt.NewJsonValue()
		for i, col := range cols {
			obj.Set(col, goToValue(rt, raw[i]))
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return runtime.NullValue, fmt.Errorf("sql.query: %v", err)
	}
	return rt.NewList(result), nil
}

func sqlClose(rt *runtime.Runtime, args []runtime.Value) (runtime.Value, error) {
	if !args[0].IsInt() {
		return runtime.NullValue, fmt.Errorf("expected a database handle")
	}
	sqlRegistryMu.Lock()
	defer sqlRegistryMu.Unlock()
	id := args[0].AsInt()
	db, ok := sqlRegistry[id]
	if !ok {
		return runtime.NullValue, fmt.Errorf("unknown database handle %d", id)
	}
	delete(sqlRegistry, id)
	if err := db.Close(); err != nil {
		return runtime.NullValue, fmt.Errorf("sql.close: %v", err)
	}
	return runtime.NullValue, nil
}

func goToValue(rt *runtime.Runtime, v interface{}) runtime.Value {
	switch t := v.(type) {
	case nil:
		return runtime.NullValue
	case int64:
		return runtime.IntVal(t)
	case float64:
		return runtime.FloatVal(t)
	case bool:
		return runtime.BoolVal(t)
	case string:
		return rt.InternString(t)
	case []byte:
		return rt.InternString(string(t))
	default:
		return rt.InternString(fmt.Sprintf("%v", t))
	}
}
