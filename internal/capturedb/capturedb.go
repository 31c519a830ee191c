// Package capturedb records capture-session metadata in a ClickHouse
// database. The journal is strictly best-effort: with no server reachable
// every call degrades to a no-op, and nothing here may ever block or fail
// the acquisition path.
package capturedb

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/oklog/ulid/v2"

	"github.com/probelab/sigmadaq"
)

const databaseName = "sigmadaq" // official SQL name of the database

// Journal is one connection to the metadata database.
type Journal struct {
	conn          clickhouse.Conn
	err           error
	activityEntry *ActivityMessage
	capturemsg    chan *sigmadaq.CaptureRecord
	sync.WaitGroup
}

// IsConnected reports whether the journal has a usable database connection.
func (db *Journal) IsConnected() bool {
	return (db != nil) && (db.conn != nil) && (db.err == nil)
}

// PingServer checks that a ClickHouse server is reachable and alive.
func PingServer() error {
	db := createConnection()
	if !db.IsConnected() {
		return fmt.Errorf("database is not connected")
	}
	v, err := db.conn.ServerVersion()
	if err != nil {
		return err
	}
	fmt.Printf("ClickHouse server is alive. Version:\n%s\n", v)
	return db.conn.Close()
}

// StartJournal opens the journal, records the daemon activity entry, and
// starts the goroutine that drains capture records. Close the abort channel
// to disconnect.
func StartJournal(activity *ActivityMessage, abort <-chan struct{}) *Journal {
	db := createConnection()
	db.activityEntry = activity
	db.logActivity()
	go db.handleConnection(abort)
	return db
}

// DummyJournal returns a journal with no database behind it; every call is
// a no-op. Used when the daemon runs without ClickHouse, and in tests.
func DummyJournal() *Journal {
	db := &Journal{}
	db.Add(1)
	return db
}

func createConnection() *Journal {
	db := &Journal{}
	auth := clickhouse.Auth{
		Database: databaseName,
		Username: os.Getenv("SIGMADAQ_DB_USER"),
		Password: os.Getenv("SIGMADAQ_DB_PASSWORD"),
	}
	client := clickhouse.ClientInfo{
		Products: []struct {
			Name    string
			Version string
		}{
			{Name: "sigmadaq", Version: sigmadaq.Build.Version},
		},
	}
	opt := clickhouse.Options{
		Addr:       []string{"localhost:9000"},
		Auth:       auth,
		ClientInfo: client,
		TLS:        nil,
	}
	ctx := context.Background()
	conn, err := clickhouse.Open(&opt)
	if err != nil {
		db.err = err
		return db
	}
	db.conn = conn
	db.Add(1)

	if err = conn.Ping(ctx); err != nil {
		if exception, ok := err.(*clickhouse.Exception); ok {
			fmt.Printf("Exception [%d] %s \n%s\n", exception.Code, exception.Message, exception.StackTrace)
		}
		db.err = err
		return db
	}

	db.capturemsg = make(chan *sigmadaq.CaptureRecord)
	return db
}

func (db *Journal) handleConnection(abort <-chan struct{}) {
	defer db.Done()
	for {
		select {
		case <-abort:
			db.Disconnect()
			return
		case msg := <-db.capturemsg:
			db.handleCaptureMessage(msg)
		}
	}
}

// Disconnect stamps the activity entry's end time and writes it out.
func (db *Journal) Disconnect() {
	if db.IsConnected() {
		db.activityEntry.End = time.Now()
		db.logActivity()
	}
}

// RecordCapture queues one finished capture for insertion. It never blocks:
// the send happens from a fresh goroutine, and an unconnected journal drops
// the record.
func (db *Journal) RecordCapture(msg *sigmadaq.CaptureRecord) {
	if !db.IsConnected() || msg == nil {
		return
	}
	go func() { db.capturemsg <- msg }()
}

func (db *Journal) logActivity() {
	if !db.IsConnected() {
		return
	}
	ctx := context.Background()
	const nowait = false
	ae := db.activityEntry
	formattedStart := ae.Start.Format("2006-01-02 15:04:05.000000")
	formattedEnd := ae.End.Format("2006-01-02 15:04:05.000000")
	if err := db.conn.AsyncInsert(ctx, `INSERT INTO sigmadaqactivity VALUES (?, ?, ?, ?, ?, ?, ?)`, nowait,
		ae.ID, ae.Hostname, ae.Version, ae.GoVersion, ae.CPUs,
		formattedStart, formattedEnd,
	); err != nil {
		fmt.Println("Error raised on AsyncInsert into sigmadaqactivity ", err)
		db.err = err
	}
}

func (db *Journal) handleCaptureMessage(m *sigmadaq.CaptureRecord) {
	if !db.IsConnected() {
		return
	}
	ctx := context.Background()
	const nowait = false
	formattedStart := m.Start.Format("2006-01-02 15:04:05.000000")
	formattedEnd := m.End.Format("2006-01-02 15:04:05.000000")
	if err := db.conn.AsyncInsert(ctx, `INSERT INTO captures VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, nowait,
		m.ID, db.activityEntry.ID, m.Serial, m.Generation,
		m.SampleRate, m.Band, m.Triggered, m.Samples,
		formattedStart, formattedEnd, m.Err,
	); err != nil {
		fmt.Println("Error raised on AsyncInsert into captures ", err)
		db.err = err
	}
}

// NewActivityMessage describes this run of the daemon for the activity
// table.
func NewActivityMessage() *ActivityMessage {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown host"
	}
	now := time.Now()
	return &ActivityMessage{
		ID:        ulid.Make().String(),
		Hostname:  hostname,
		Version:   sigmadaq.Build.Version,
		GoVersion: runtime.Version(),
		CPUs:      runtime.NumCPU(),
		Start:     now,
		End:       now,
	}
}
