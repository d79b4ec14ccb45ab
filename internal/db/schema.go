package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- THERAPY MEMORY (one record per user, record id = user id)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS therapy_memory SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON therapy_memory TYPE string;
    DEFINE FIELD IF NOT EXISTS summary ON therapy_memory TYPE string;
    DEFINE FIELD IF NOT EXISTS key_insights ON therapy_memory TYPE string;
    DEFINE FIELD IF NOT EXISTS emotion_tags ON therapy_memory TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS last_updated ON therapy_memory TYPE datetime;
    DEFINE FIELD IF NOT EXISTS created_at ON therapy_memory TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- CHAT MESSAGES
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chat_message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON chat_message TYPE string;
    DEFINE FIELD IF NOT EXISTS role ON chat_message TYPE string ASSERT $value IN ["user", "assistant"];
    DEFINE FIELD IF NOT EXISTS content ON chat_message TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON chat_message TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS chat_message_user ON chat_message FIELDS user_id, created_at;

    -- ==========================================================================
    -- SIGNALS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS emotion_log SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON emotion_log TYPE string;
    DEFINE FIELD IF NOT EXISTS emotion ON emotion_log TYPE string;
    DEFINE FIELD IF NOT EXISTS intensity ON emotion_log TYPE float ASSERT $value >= 0 AND $value <= 1;
    DEFINE FIELD IF NOT EXISTS note ON emotion_log TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON emotion_log TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS emotion_log_user ON emotion_log FIELDS user_id, created_at;

    DEFINE TABLE IF NOT EXISTS mood_trend SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON mood_trend TYPE string;
    DEFINE FIELD IF NOT EXISTS category ON mood_trend TYPE string;
    DEFINE FIELD IF NOT EXISTS score ON mood_trend TYPE float ASSERT $value >= 1 AND $value <= 10;
    DEFINE FIELD IF NOT EXISTS note ON mood_trend TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON mood_trend TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS mood_trend_user ON mood_trend FIELDS user_id, created_at;

    DEFINE TABLE IF NOT EXISTS test_result SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON test_result TYPE string;
    DEFINE FIELD IF NOT EXISTS test_name ON test_result TYPE string;
    DEFINE FIELD IF NOT EXISTS score ON test_result TYPE float;
    DEFINE FIELD IF NOT EXISTS result ON test_result TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS created_at ON test_result TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS test_result_user ON test_result FIELDS user_id, created_at;

    DEFINE TABLE IF NOT EXISTS client_test_result SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS client_id ON client_test_result TYPE string;
    DEFINE FIELD IF NOT EXISTS clinician_id ON client_test_result TYPE string;
    DEFINE FIELD IF NOT EXISTS test_name ON client_test_result TYPE string;
    DEFINE FIELD IF NOT EXISTS score ON client_test_result TYPE float;
    DEFINE FIELD IF NOT EXISTS interpretation ON client_test_result TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS created_at ON client_test_result TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS client_test_result_client ON client_test_result FIELDS client_id, created_at;

    -- ==========================================================================
    -- SESSION PLANS (append-only, latest is current)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS session_plan SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON session_plan TYPE string;
    DEFINE FIELD IF NOT EXISTS topic ON session_plan TYPE string;
    DEFINE FIELD IF NOT EXISTS focus_area ON session_plan TYPE string;
    DEFINE FIELD IF NOT EXISTS suggested_test ON session_plan TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS daily_practice ON session_plan TYPE string;
    DEFINE FIELD IF NOT EXISTS ai_confidence ON session_plan TYPE float ASSERT $value >= 0 AND $value <= 1;
    DEFINE FIELD IF NOT EXISTS fallback ON session_plan TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS created_at ON session_plan TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS session_plan_user ON session_plan FIELDS user_id, created_at;

    -- ==========================================================================
    -- CLINICAL NOTES AND RISK FLAGS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS clinical_note SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS client_id ON clinical_note TYPE string;
    DEFINE FIELD IF NOT EXISTS clinician_id ON clinical_note TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON clinical_note TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON clinical_note TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS clinical_note_client ON clinical_note FIELDS client_id, created_at;

    DEFINE TABLE IF NOT EXISTS risk_flag SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS note ON risk_flag TYPE record<clinical_note>;
    DEFINE FIELD IF NOT EXISTS client_id ON risk_flag TYPE string;
    DEFINE FIELD IF NOT EXISTS clinician_id ON risk_flag TYPE string;
    DEFINE FIELD IF NOT EXISTS level ON risk_flag TYPE string ASSERT $value IN ["low", "medium", "high", "critical"];
    DEFINE FIELD IF NOT EXISTS category ON risk_flag TYPE string ASSERT $value IN ["anxiety", "depression", "suicide", "self-harm", "stress", "other"];
    DEFINE FIELD IF NOT EXISTS created_at ON risk_flag TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS risk_flag_client ON risk_flag FIELDS client_id, created_at;

    -- ==========================================================================
    -- DREAMS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS dream_record SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON dream_record TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON dream_record TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON dream_record TYPE string;
    DEFINE FIELD IF NOT EXISTS interpretation ON dream_record TYPE string;
    DEFINE FIELD IF NOT EXISTS inspiration ON dream_record TYPE string;
    DEFINE FIELD IF NOT EXISTS source_data ON dream_record TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS mood_context ON dream_record TYPE string ASSERT $value IN ["positive", "negative", "balanced", "unclear"];
    DEFINE FIELD IF NOT EXISTS created_at ON dream_record TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS dream_record_user ON dream_record FIELDS user_id, created_at;

    DEFINE TABLE IF NOT EXISTS dream_pattern SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON dream_pattern TYPE string;
    DEFINE FIELD IF NOT EXISTS symbol ON dream_pattern TYPE string;
    DEFINE FIELD IF NOT EXISTS frequency ON dream_pattern TYPE int ASSERT $value > 0;
    DEFINE FIELD IF NOT EXISTS meaning ON dream_pattern TYPE string;
    DEFINE FIELD IF NOT EXISTS sentiment ON dream_pattern TYPE float ASSERT $value >= -1 AND $value <= 1;
    DEFINE FIELD IF NOT EXISTS related_tests ON dream_pattern TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON dream_pattern TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS dream_pattern_user ON dream_pattern FIELDS user_id, created_at;

    -- ==========================================================================
    -- FIXED-WINDOW COUNTERS (rate limiting, notification dedupe)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS window_counter SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS count ON window_counter TYPE int;
    DEFINE FIELD IF NOT EXISTS window_end ON window_counter TYPE datetime;
`
