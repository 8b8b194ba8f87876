// Package postgres implements the PostgreSQL persistence layer of the
// PropsHub scoring engine.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROPS AND TAKES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create props and takes tables
-- Version: 001

CREATE TABLE IF NOT EXISTS props (
    prop_id VARCHAR(80) PRIMARY KEY,
    title VARCHAR(200) NOT NULL DEFAULT '',
    lifecycle VARCHAR(20) NOT NULL DEFAULT 'open',
    graded_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_lifecycle CHECK (lifecycle IN ('open', 'closed', 'graded', 'archived', 'draft'))
);

CREATE TABLE IF NOT EXISTS takes (
    id VARCHAR(64) PRIMARY KEY,
    mobile VARCHAR(20) NOT NULL,
    profile_id UUID,
    prop_id VARCHAR(80) NOT NULL,
    pack_ids TEXT[] NOT NULL DEFAULT '{}',
    points INTEGER NOT NULL DEFAULT 0,
    result VARCHAR(20) NOT NULL DEFAULT 'pending',
    status VARCHAR(20) NOT NULL DEFAULT 'latest',
    hidden BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_result CHECK (result IN ('won', 'lost', 'pushed', 'pending', 'unknown')),
    CONSTRAINT valid_status CHECK (status IN ('latest', 'overwritten'))
);

-- Indexes for scope resolution paths
CREATE INDEX IF NOT EXISTS idx_takes_mobile ON takes(mobile);
CREATE INDEX IF NOT EXISTS idx_takes_prop_id ON takes(prop_id);
CREATE INDEX IF NOT EXISTS idx_takes_pack_ids ON takes USING GIN(pack_ids);
CREATE INDEX IF NOT EXISTS idx_takes_created_at ON takes(created_at);
CREATE INDEX IF NOT EXISTS idx_takes_visible ON takes(prop_id) WHERE status = 'latest' AND hidden = FALSE;
`

const migration001Down = `
DROP TABLE IF EXISTS takes;
DROP TABLE IF EXISTS props;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE PACKS, PROFILES AND SCOPE WINNERS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create packs, profiles and the scope winner ledger
-- Version: 002

CREATE TABLE IF NOT EXISTS packs (
    pack_id VARCHAR(80) PRIMARY KEY,
    title VARCHAR(200) NOT NULL DEFAULT '',
    contest_id VARCHAR(80),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_packs_contest_id ON packs(contest_id);

CREATE TABLE IF NOT EXISTS profiles (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    handle VARCHAR(60) NOT NULL DEFAULT '',
    phone VARCHAR(20) NOT NULL UNIQUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_profiles_phone ON profiles(phone);

-- Write-once winner ledger. The primary key on scope_ref is what makes a
-- graded scope terminal: a second grading pass conflicts and writes nothing.
CREATE TABLE IF NOT EXISTS scope_winners (
    scope_ref VARCHAR(200) PRIMARY KEY,
    winner_subject VARCHAR(20) NOT NULL DEFAULT '',
    winner_profile_id UUID,
    graded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration002Down = `
DROP TABLE IF EXISTS scope_winners;
DROP TABLE IF EXISTS profiles;
DROP TABLE IF EXISTS packs;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE TEAMS AND ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create teams, prop/team links and achievements
-- Version: 003

CREATE TABLE IF NOT EXISTS teams (
    slug VARCHAR(60) PRIMARY KEY,
    name VARCHAR(120) NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS props_teams (
    prop_id VARCHAR(80) NOT NULL,
    team_slug VARCHAR(60) NOT NULL,

    PRIMARY KEY (prop_id, team_slug)
);

CREATE INDEX IF NOT EXISTS idx_props_teams_team_slug ON props_teams(team_slug);

CREATE TABLE IF NOT EXISTS achievements (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    profile_ref UUID,
    subject_key VARCHAR(20) NOT NULL DEFAULT '',
    achievement_key VARCHAR(60) NOT NULL,
    title VARCHAR(120) NOT NULL DEFAULT '',
    description VARCHAR(200) NOT NULL DEFAULT '',
    value INTEGER NOT NULL DEFAULT 0,
    awarded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- The at-most-once guarantee for milestone awards. The derive step only
-- narrows candidates; this index is what actually prevents double awards.
CREATE UNIQUE INDEX IF NOT EXISTS uq_achievements_profile_key
    ON achievements(profile_ref, achievement_key) WHERE profile_ref IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_achievements_subject_key
    ON achievements(subject_key, achievement_key) WHERE profile_ref IS NULL;

CREATE INDEX IF NOT EXISTS idx_achievements_profile_ref ON achievements(profile_ref);
CREATE INDEX IF NOT EXISTS idx_achievements_subject_key ON achievements(subject_key);
`

const migration003Down = `
DROP TABLE IF EXISTS achievements;
DROP TABLE IF EXISTS props_teams;
DROP TABLE IF EXISTS teams;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE TAKE/TEAM RESULTS VIEW
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create the denormalized take/team results view
-- Version: 004
--
-- The team scope resolver prefers this view; when it is absent (older
-- environments, partial restores) the resolver transparently falls back
-- to the equivalent manual join.

CREATE OR REPLACE VIEW take_team_results AS
SELECT
    t.id,
    t.mobile,
    t.profile_id,
    t.prop_id,
    t.pack_ids,
    t.points,
    t.result,
    t.status,
    t.hidden,
    t.created_at,
    pt.team_slug,
    p.lifecycle
FROM takes t
JOIN props_teams pt ON pt.prop_id = t.prop_id
JOIN props p ON p.prop_id = t.prop_id;
`

const migration004Down = `
DROP VIEW IF EXISTS take_team_results;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_props_and_takes",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_packs_profiles_winners",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_teams_and_achievements",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_take_team_results_view",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}
