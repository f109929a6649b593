package store

// TableNames lists every table in dependency order (parents first).
// Reset drops them in reverse; Stats reports them in this order.
var TableNames = []string{
	"sync_state",
	"threads",
	"messages",
	"attachments",
	"parsed_metadata",
	"sender_temporal",
	"parsed_content",
	"extracted_entities",
	"ai_classification",
	"classification_overrides",
	"domain_exclusions",
	"sender_relationships",
	"sender_profiles",
	"gems",
	"sender_segments",
	"engagement_drafts",
	"pipeline_runs",
	"ai_audit_log",
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sync_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_history_id TEXT NOT NULL DEFAULT '',
		last_full_sync TEXT,
		last_incremental_sync TEXT,
		total_synced INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL DEFAULT '',
		clean_subject TEXT NOT NULL DEFAULT '',
		participants TEXT NOT NULL DEFAULT '[]',
		message_count INTEGER NOT NULL DEFAULT 0,
		first_message_date TEXT,
		last_message_date TEXT,
		last_sender TEXT NOT NULL DEFAULT '',
		user_participated INTEGER NOT NULL DEFAULT 0,
		user_last_replied TEXT,
		awaiting_response_from TEXT NOT NULL DEFAULT 'none',
		days_dormant INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL REFERENCES threads(id),
		from_name TEXT NOT NULL DEFAULT '',
		from_email TEXT NOT NULL DEFAULT '',
		reply_to TEXT NOT NULL DEFAULT '',
		to_emails TEXT NOT NULL DEFAULT '[]',
		cc_emails TEXT NOT NULL DEFAULT '[]',
		subject TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		body_text TEXT NOT NULL DEFAULT '',
		body_html TEXT NOT NULL DEFAULT '',
		snippet TEXT NOT NULL DEFAULT '',
		labels TEXT NOT NULL DEFAULT '[]',
		headers_raw TEXT NOT NULL DEFAULT '{}',
		is_sent_by_user INTEGER NOT NULL DEFAULT 0,
		size_estimate INTEGER NOT NULL DEFAULT 0,
		has_attachments INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS attachments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL REFERENCES messages(id),
		filename TEXT NOT NULL DEFAULT '',
		mime_type TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS parsed_metadata (
		message_id TEXT PRIMARY KEY REFERENCES messages(id),
		sender_domain TEXT NOT NULL DEFAULT '',
		sender_subdomain TEXT NOT NULL DEFAULT '',
		envelope_sender TEXT NOT NULL DEFAULT '',
		esp_identified TEXT NOT NULL DEFAULT '',
		esp_confidence TEXT NOT NULL DEFAULT '',
		dkim_domain TEXT NOT NULL DEFAULT '',
		spf_result TEXT NOT NULL DEFAULT '',
		dmarc_result TEXT NOT NULL DEFAULT '',
		sending_ip TEXT NOT NULL DEFAULT '',
		mail_server TEXT NOT NULL DEFAULT '',
		x_mailer TEXT NOT NULL DEFAULT '',
		precedence TEXT NOT NULL DEFAULT '',
		feedback_id TEXT NOT NULL DEFAULT '',
		list_unsubscribe_url TEXT NOT NULL DEFAULT '',
		list_unsubscribe_email TEXT NOT NULL DEFAULT '',
		is_bulk INTEGER NOT NULL DEFAULT 0,
		parsed_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sender_temporal (
		sender_domain TEXT PRIMARY KEY,
		total_messages INTEGER NOT NULL DEFAULT 0,
		first_seen TEXT,
		last_seen TEXT,
		avg_frequency_days REAL NOT NULL DEFAULT 0,
		most_common_hour INTEGER NOT NULL DEFAULT 0,
		most_common_weekday INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS parsed_content (
		message_id TEXT PRIMARY KEY REFERENCES messages(id),
		body_clean TEXT NOT NULL DEFAULT '',
		signature_block TEXT NOT NULL DEFAULT '',
		primary_headline TEXT NOT NULL DEFAULT '',
		cta_texts TEXT NOT NULL DEFAULT '[]',
		offer_types TEXT NOT NULL DEFAULT '[]',
		has_personalization INTEGER NOT NULL DEFAULT 0,
		personalization_tokens TEXT NOT NULL DEFAULT '[]',
		link_count INTEGER NOT NULL DEFAULT 0,
		tracking_pixel_count INTEGER NOT NULL DEFAULT 0,
		unique_link_domains TEXT NOT NULL DEFAULT '[]',
		link_intents TEXT NOT NULL DEFAULT '{}',
		utm_campaigns TEXT NOT NULL DEFAULT '[]',
		physical_address TEXT NOT NULL DEFAULT '',
		social_links TEXT NOT NULL DEFAULT '{}',
		image_count INTEGER NOT NULL DEFAULT 0,
		template_complexity INTEGER NOT NULL DEFAULT 0,
		parsed_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS extracted_entities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL REFERENCES messages(id),
		entity_type TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		normalized TEXT NOT NULL DEFAULT '',
		context TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT '',
		extracted_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS ai_classification (
		message_id TEXT PRIMARY KEY REFERENCES messages(id),
		industry TEXT NOT NULL DEFAULT '',
		company_size TEXT NOT NULL DEFAULT '',
		sophistication INTEGER NOT NULL DEFAULT 0,
		sender_intent TEXT NOT NULL DEFAULT '',
		product_type TEXT NOT NULL DEFAULT '',
		product_description TEXT NOT NULL DEFAULT '',
		pain_points TEXT NOT NULL DEFAULT '[]',
		target_audience TEXT NOT NULL DEFAULT '',
		partner_program_detected INTEGER NOT NULL DEFAULT 0,
		renewal_signal_detected INTEGER NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0,
		model_used TEXT NOT NULL DEFAULT '',
		has_override INTEGER NOT NULL DEFAULT 0,
		classified_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS classification_overrides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT,
		sender_domain TEXT NOT NULL DEFAULT '',
		field_name TEXT NOT NULL,
		original_value TEXT NOT NULL DEFAULT '',
		corrected_value TEXT NOT NULL,
		scope TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS domain_exclusions (
		domain TEXT PRIMARY KEY,
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sender_relationships (
		sender_domain TEXT PRIMARY KEY,
		relationship_type TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		suppress_gems INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT 'manual',
		note TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sender_profiles (
		sender_domain TEXT PRIMARY KEY,
		company_name TEXT NOT NULL DEFAULT '',
		primary_email TEXT NOT NULL DEFAULT '',
		reply_to_email TEXT NOT NULL DEFAULT '',
		industry TEXT NOT NULL DEFAULT '',
		company_size TEXT NOT NULL DEFAULT '',
		sender_intent TEXT NOT NULL DEFAULT '',
		product_type TEXT NOT NULL DEFAULT '',
		product_description TEXT NOT NULL DEFAULT '',
		pain_points TEXT NOT NULL DEFAULT '[]',
		target_audience TEXT NOT NULL DEFAULT '',
		sophistication_avg REAL NOT NULL DEFAULT 0,
		sophistication_ai REAL,
		sophistication_det INTEGER NOT NULL DEFAULT 0,
		sophistication_trend TEXT NOT NULL DEFAULT 'stable',
		esp_used TEXT NOT NULL DEFAULT '',
		auth_quality TEXT NOT NULL DEFAULT '',
		unsubscribe_url TEXT NOT NULL DEFAULT '',
		bulk_ratio REAL NOT NULL DEFAULT 0,
		total_messages INTEGER NOT NULL DEFAULT 0,
		avg_frequency_days REAL NOT NULL DEFAULT 0,
		first_contact TEXT,
		last_contact TEXT,
		known_contacts TEXT NOT NULL DEFAULT '[]',
		offer_type_distribution TEXT NOT NULL DEFAULT '{}',
		cta_texts TEXT NOT NULL DEFAULT '[]',
		social_links TEXT NOT NULL DEFAULT '{}',
		physical_address TEXT NOT NULL DEFAULT '',
		utm_campaign_names TEXT NOT NULL DEFAULT '[]',
		has_personalization INTEGER NOT NULL DEFAULT 0,
		has_partner_program INTEGER NOT NULL DEFAULT 0,
		partner_program_urls TEXT NOT NULL DEFAULT '[]',
		renewal_dates TEXT NOT NULL DEFAULT '[]',
		monetary_signals TEXT NOT NULL DEFAULT '[]',
		thread_initiation_ratio REAL,
		user_reply_rate REAL,
		relationship_type TEXT NOT NULL DEFAULT '',
		built_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS gems (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gem_type TEXT NOT NULL,
		sender_domain TEXT NOT NULL REFERENCES sender_profiles(sender_domain),
		thread_id TEXT,
		score REAL NOT NULL DEFAULT 0,
		explanation TEXT NOT NULL DEFAULT '{}',
		recommended_actions TEXT NOT NULL DEFAULT '[]',
		source_message_ids TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'new',
		detected_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sender_segments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_domain TEXT NOT NULL,
		segment TEXT NOT NULL,
		sub_segment TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		assigned_at TEXT NOT NULL,
		UNIQUE (sender_domain, segment, sub_segment)
	)`,

	`CREATE TABLE IF NOT EXISTS engagement_drafts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gem_id INTEGER NOT NULL REFERENCES gems(id) ON DELETE CASCADE,
		sender_domain TEXT NOT NULL DEFAULT '',
		strategy TEXT NOT NULL DEFAULT '',
		channel TEXT NOT NULL DEFAULT 'email',
		subject_line TEXT NOT NULL DEFAULT '',
		body_text TEXT NOT NULL DEFAULT '',
		body_html TEXT NOT NULL DEFAULT '',
		context_used TEXT NOT NULL DEFAULT '{}',
		model_used TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		generated_at TEXT NOT NULL,
		sent_at TEXT,
		response_received INTEGER NOT NULL DEFAULT 0,
		response_sentiment TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stage TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT,
		items_processed INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		config_snapshot TEXT NOT NULL DEFAULT '{}',
		triggered_by TEXT NOT NULL DEFAULT 'cli'
	)`,

	`CREATE TABLE IF NOT EXISTS ai_audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL DEFAULT 0,
		stage TEXT NOT NULL DEFAULT '',
		sender_domain TEXT NOT NULL DEFAULT '',
		template_id TEXT NOT NULL DEFAULT '',
		prompt_rendered TEXT NOT NULL DEFAULT '',
		system_prompt TEXT NOT NULL DEFAULT '',
		model_used TEXT NOT NULL DEFAULT '',
		response_raw TEXT NOT NULL DEFAULT '',
		response_parsed TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_from_email ON messages(from_email)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_date ON messages(date)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id)`,
	`CREATE INDEX IF NOT EXISTS idx_metadata_domain ON parsed_metadata(sender_domain)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_type ON extracted_entities(entity_type)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_message ON extracted_entities(message_id)`,
	`CREATE INDEX IF NOT EXISTS idx_gems_type ON gems(gem_type)`,
	`CREATE INDEX IF NOT EXISTS idx_gems_score ON gems(score DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_gems_status ON gems(status)`,
	`CREATE INDEX IF NOT EXISTS idx_overrides_domain ON classification_overrides(sender_domain)`,
}

type columnMigration struct {
	table      string
	column     string
	definition string
}

// columnMigrations is the additive migration registry. Databases created
// before these columns existed get them added on the next Migrate.
var columnMigrations = []columnMigration{
	{"parsed_metadata", "sender_subdomain", "sender_subdomain TEXT NOT NULL DEFAULT ''"},
	{"parsed_metadata", "mail_server", "mail_server TEXT NOT NULL DEFAULT ''"},
	{"parsed_metadata", "x_mailer", "x_mailer TEXT NOT NULL DEFAULT ''"},
	{"parsed_metadata", "precedence", "precedence TEXT NOT NULL DEFAULT ''"},
	{"parsed_metadata", "feedback_id", "feedback_id TEXT NOT NULL DEFAULT ''"},
	{"sender_profiles", "thread_initiation_ratio", "thread_initiation_ratio REAL"},
	{"sender_profiles", "user_reply_rate", "user_reply_rate REAL"},
	{"sender_profiles", "relationship_type", "relationship_type TEXT NOT NULL DEFAULT ''"},
	{"engagement_drafts", "body_html", "body_html TEXT NOT NULL DEFAULT ''"},
}
