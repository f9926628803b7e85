package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/uestack/internal/stack"
)

type DB struct {
	*sql.DB
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metrics (
			session           TEXT,
			tick              BIGINT,
			ready             BOOLEAN,
			emm_state         TEXT,
			rrc_state         TEXT,
			eps_bearers       BIGINT,
			ul_dropped_sdus   BIGINT,
			mac_ttis          BIGINT,
			mac_tx_packets    BIGINT,
			mac_tx_errors     BIGINT,
			mac_tx_bytes      BIGINT,
			mac_rx_packets    BIGINT,
			mac_rx_errors     BIGINT,
			mac_rx_bytes      BIGINT,
			mac_nr_ttis       BIGINT,
			mac_nr_tx_bytes   BIGINT,
			mac_nr_rx_bytes   BIGINT,
			rlc_tx_bytes      BIGINT,
			rlc_rx_bytes      BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// RecordSnapshot appends one metrics snapshot to the history table.
func (db *DB) RecordSnapshot(session string, m stack.Metrics, ready bool) error {
	_, err := db.Exec(
		`INSERT INTO metrics (
			session, tick, ready, emm_state, rrc_state, eps_bearers,
			ul_dropped_sdus, mac_ttis, mac_tx_packets, mac_tx_errors,
			mac_tx_bytes, mac_rx_packets, mac_rx_errors, mac_rx_bytes,
			mac_nr_ttis, mac_nr_tx_bytes, mac_nr_rx_bytes,
			rlc_tx_bytes, rlc_rx_bytes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session, int64(m.Tick), ready, m.NAS.State.String(), m.RRC.State.String(),
		int64(m.NAS.ActiveEPSBearers), int64(m.ULDroppedSDUs),
		int64(m.MAC.NofTTIs), int64(m.MAC.TxPackets), int64(m.MAC.TxErrors),
		int64(m.MAC.TxBytes), int64(m.MAC.RxPackets), int64(m.MAC.RxErrors),
		int64(m.MAC.RxBytes),
		int64(m.MACNR.NofTTIs), int64(m.MACNR.TxBytes), int64(m.MACNR.RxBytes),
		int64(m.RLC.TxBytes), int64(m.RLC.RxBytes),
	)
	if err != nil {
		return err
	}
	return nil
}

type Snapshot struct {
	Session       string `json:"session"`
	Tick          int64  `json:"tick"`
	Ready         bool   `json:"ready"`
	EMMState      string `json:"emm_state"`
	RRCState      string `json:"rrc_state"`
	EPSBearers    int64  `json:"eps_bearers"`
	ULDroppedSDUs int64  `json:"ul_dropped_sdus"`
	MACTTIs       int64  `json:"mac_ttis"`
	MACTxPackets  int64  `json:"mac_tx_packets"`
	MACTxErrors   int64  `json:"mac_tx_errors"`
	MACTxBytes    int64  `json:"mac_tx_bytes"`
	MACRxPackets  int64  `json:"mac_rx_packets"`
	MACRxErrors   int64  `json:"mac_rx_errors"`
	MACRxBytes    int64  `json:"mac_rx_bytes"`
	MACNRTTIs     int64  `json:"mac_nr_ttis"`
	MACNRTxBytes  int64  `json:"mac_nr_tx_bytes"`
	MACNRRxBytes  int64  `json:"mac_nr_rx_bytes"`
	RLCTxBytes    int64  `json:"rlc_tx_bytes"`
	RLCRxBytes    int64  `json:"rlc_rx_bytes"`
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("Session: %s, Tick: %d, Ready: %t, EMM: %s, RRC: %s",
		s.Session, s.Tick, s.Ready, s.EMMState, s.RRCState)
}

// RecentSnapshots returns the newest limit rows, newest first.
func (db *DB) RecentSnapshots(limit int) ([]Snapshot, error) {
	rows, err := db.Query(`SELECT session, tick, ready, emm_state, rrc_state, eps_bearers,
			ul_dropped_sdus, mac_ttis, mac_tx_packets, mac_tx_errors, mac_tx_bytes,
			mac_rx_packets, mac_rx_errors, mac_rx_bytes, mac_nr_ttis, mac_nr_tx_bytes,
			mac_nr_rx_bytes, rlc_tx_bytes, rlc_rx_bytes
		FROM metrics ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(
			&s.Session,
			&s.Tick,
			&s.Ready,
			&s.EMMState,
			&s.RRCState,
			&s.EPSBearers,
			&s.ULDroppedSDUs,
			&s.MACTTIs,
			&s.MACTxPackets,
			&s.MACTxErrors,
			&s.MACTxBytes,
			&s.MACRxPackets,
			&s.MACRxErrors,
			&s.MACRxBytes,
			&s.MACNRTTIs,
			&s.MACNRTxBytes,
			&s.MACNRRxBytes,
			&s.RLCTxBytes,
			&s.RLCRxBytes,
		); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snapshots, nil
}

// SessionSnapshots returns the snapshots recorded under one session id,
// oldest first, so a whole run reads as a time series.
func (db *DB) SessionSnapshots(session string) ([]Snapshot, error) {
	rows, err := db.Query(`SELECT session, tick, ready, emm_state, rrc_state, eps_bearers,
			ul_dropped_sdus, mac_ttis, mac_tx_packets, mac_tx_errors, mac_tx_bytes,
			mac_rx_packets, mac_rx_errors, mac_rx_bytes, mac_nr_ttis, mac_nr_tx_bytes,
			mac_nr_rx_bytes, rlc_tx_bytes, rlc_rx_bytes
		FROM metrics WHERE session = ? ORDER BY timestamp ASC, rowid ASC`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(
			&s.Session,
			&s.Tick,
			&s.Ready,
			&s.EMMState,
			&s.RRCState,
			&s.EPSBearers,
			&s.ULDroppedSDUs,
			&s.MACTTIs,
			&s.MACTxPackets,
			&s.MACTxErrors,
			&s.MACTxBytes,
			&s.MACRxPackets,
			&s.MACRxErrors,
			&s.MACRxBytes,
			&s.MACNRTTIs,
			&s.MACNRTxBytes,
			&s.MACNRRxBytes,
			&s.RLCTxBytes,
			&s.RLCRxBytes,
		); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snapshots, nil
}

// AttachAdminRoutes mounts the database maintenance endpoints.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/db/backup", func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			os.Remove(backupPath)
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	})
}
