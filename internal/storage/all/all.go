// Package all registers every storage backend with the storage factory.
package all

import (
	_ "statscrape/internal/storage/mssql"
	_ "statscrape/internal/storage/postgres"
	_ "statscrape/internal/storage/sqlite"
)
