// Package hogwarts wraps the public HP-API (hp-api.onrender.com) as chat tools
// for looking up Harry Potter students, staff and spells by name.
package hogwarts
