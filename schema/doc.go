// Package schema reads the declarative entity metadata the statement
// plugins consume: struct tags, column names and table names.
//
// Fields are marked with the veloxplug tag:
//
//	type User struct {
//	    ID        int64     `db:"id"`
//	    Name      string    `db:"name"`
//	    Version   int64     `db:"version" veloxplug:"version"`
//	    Deleted   int       `db:"deleted" veloxplug:"logic"`
//	    CreatedAt time.Time `db:"created_at" veloxplug:"fill=insert"`
//	    UpdatedAt time.Time `db:"updated_at" veloxplug:"fill=insert_update"`
//	}
//
// The db tag overrides the column name. Without it the column is the
// field name passed through a Naming function (verbatim by default).
//
// Table names come from the TableNamer interface, or are derived from
// the type name: User becomes "users", OrderItem becomes "order_items".
package schema
