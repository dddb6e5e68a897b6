package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockID(t *testing.T) {
	a := LockID("seqsearch", "schema")
	b := LockID("seqsearch", "schema")
	c := LockID("seqsearch", "runs")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestConnectionParams_ConnString(t *testing.T) {
	p := ConnectionParams{Host: "localhost", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=d sslmode=disable", p.ConnString())
}
