// Package project manages the on-disk layout of a dumbo project.
//
// A project is a directory holding the configuration file and the versioned
// migration scripts:
//
//	project-root/
//	├── dumbo.yaml              # Connection, schemas and locations
//	└── db/
//	    └── migration/          # V<version>__<description>.sql scripts
//
// Initialize is idempotent and never overwrites existing files. NewMigration
// creates the next script in the first configured location, using a UTC
// timestamp as the version unless one is given:
//
//	proj := project.New(".")
//	if err := proj.Initialize(project.InitOptions{}); err != nil {
//		log.Fatal(err)
//	}
//
//	path, err := proj.NewMigration(ctx, "add accounts table", "")
//	// path = db/migration/V20240101120000__add_accounts_table.sql
package project
