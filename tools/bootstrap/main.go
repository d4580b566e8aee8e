// bootstrap creates the lab-order tables in a development database and seeds
// the test catalog. Deployed environments own their schema; the service's
// data plane always goes through the row-level REST interface.
package main

import (
	"fmt"
	"log"

	"github.com/joeshaw/envdecode"

	"github.com/flowlabs-tech/labflow/core/csql"
)

// Service holds the configuration for this tool
//
// use POSTGRES="host=localhost port=5432 user=postgres password=docker dbname=postgres sslmode=disable"
type Service struct {
	Postgres string `env:"POSTGRES,required" description:"the connection string for the Postgres DB"`
	Schema   string `env:"SCHEMA,default=public" description:"the database schema"`
}

var createQuery = `
CREATE TABLE IF NOT EXISTS %[1]s.tests (
	id SERIAL PRIMARY KEY,
	name VARCHAR NOT NULL UNIQUE,
	description VARCHAR NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS %[1]s.orders (
	id SERIAL PRIMARY KEY,
	patient_id VARCHAR NOT NULL,
	test VARCHAR NOT NULL,
	status BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS %[1]s.records (
	id SERIAL PRIMARY KEY,
	patient_id VARCHAR NOT NULL,
	order_id INTEGER NOT NULL REFERENCES %[1]s.orders (id),
	content VARCHAR,
	url VARCHAR
);
`

var seedQuery = `
INSERT INTO %[1]s.tests (name, description) VALUES
	('CBC', 'Complete blood count'),
	('Lipid Panel', 'Cholesterol and triglycerides'),
	('Basic Metabolic Panel', 'Glucose, electrolytes and kidney function'),
	('HbA1c', 'Average blood glucose over three months'),
	('TSH', 'Thyroid stimulating hormone')
ON CONFLICT (name) DO NOTHING;
`

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}

	db := csql.OpenWithSchema(service.Postgres, service.Schema)
	defer db.Close()

	if _, err := db.Exec(expand(createQuery, db.Schema)); err != nil {
		panic(err)
	}
	log.Println("created tables in schema", db.Schema)

	if _, err := db.Exec(expand(seedQuery, db.Schema)); err != nil {
		panic(err)
	}
	log.Println("seeded test catalog")
}

func expand(query, schema string) string {
	return fmt.Sprintf(query, schema)
}
