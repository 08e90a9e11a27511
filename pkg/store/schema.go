package store

// createTable takes the boolean column type as its only verb.
const createTable = `CREATE TABLE IF NOT EXISTS sleep_metrics (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	participant_id TEXT NOT NULL,
	analysis_date TEXT NOT NULL,
	marker_index INTEGER NOT NULL,
	marker_type TEXT NOT NULL,
	sleep_algorithm TEXT NOT NULL,
	sleep_algorithm_name TEXT NOT NULL,
	nonwear_algorithm TEXT NOT NULL,
	nonwear_algorithm_name TEXT NOT NULL,
	period_detector TEXT NOT NULL,
	period_detector_name TEXT NOT NULL,
	window_source TEXT NOT NULL,
	onset_time TEXT NOT NULL,
	offset_time TEXT NOT NULL,
	onset_timestamp DOUBLE PRECISION NOT NULL,
	offset_timestamp DOUBLE PRECISION NOT NULL,
	onset_index INTEGER NOT NULL,
	offset_index INTEGER NOT NULL,
	inclusive_end %s NOT NULL,
	total_sleep_time DOUBLE PRECISION NOT NULL,
	sleep_efficiency DOUBLE PRECISION,
	total_minutes_in_bed DOUBLE PRECISION NOT NULL,
	waso DOUBLE PRECISION NOT NULL,
	awakenings INTEGER NOT NULL,
	average_awakening_length DOUBLE PRECISION,
	total_activity DOUBLE PRECISION NOT NULL,
	movement_index DOUBLE PRECISION,
	fragmentation_index DOUBLE PRECISION,
	sleep_fragmentation_index DOUBLE PRECISION,
	sleep_label_at_onset INTEGER,
	sleep_label_at_offset INTEGER,
	nonwear_algorithm_minutes DOUBLE PRECISION,
	nonwear_sensor_minutes DOUBLE PRECISION,
	created_at TIMESTAMP NOT NULL
)`

const createIndex = `CREATE INDEX IF NOT EXISTS sleep_metrics_participant_date
	ON sleep_metrics (participant_id, analysis_date, marker_index)`

const deleteRow = `DELETE FROM sleep_metrics WHERE participant_id = ? AND analysis_date = ? AND marker_index = ?`

const insertRow = `INSERT INTO sleep_metrics (
	id, run_id, source, participant_id, analysis_date, marker_index, marker_type,
	sleep_algorithm, sleep_algorithm_name, nonwear_algorithm, nonwear_algorithm_name,
	period_detector, period_detector_name,
	window_source, onset_time, offset_time, onset_timestamp, offset_timestamp,
	onset_index, offset_index, inclusive_end,
	total_sleep_time, sleep_efficiency, total_minutes_in_bed, waso, awakenings,
	average_awakening_length, total_activity, movement_index,
	fragmentation_index, sleep_fragmentation_index,
	sleep_label_at_onset, sleep_label_at_offset,
	nonwear_algorithm_minutes, nonwear_sensor_minutes, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectRows = `SELECT
	id, run_id, source, participant_id, analysis_date, marker_index, marker_type,
	sleep_algorithm, sleep_algorithm_name, nonwear_algorithm, nonwear_algorithm_name,
	period_detector, period_detector_name,
	window_source, onset_time, offset_time, onset_timestamp, offset_timestamp,
	onset_index, offset_index, inclusive_end,
	total_sleep_time, sleep_efficiency, total_minutes_in_bed, waso, awakenings,
	average_awakening_length, total_activity, movement_index,
	fragmentation_index, sleep_fragmentation_index,
	sleep_label_at_onset, sleep_label_at_offset,
	nonwear_algorithm_minutes, nonwear_sensor_minutes, created_at
FROM sleep_metrics
WHERE participant_id = ?
ORDER BY analysis_date, marker_index`
