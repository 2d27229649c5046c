package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Flow graphs are stored as documents; the engine reads whole snapshots.
			CREATE TABLE flow_graphs (
				tenant_id VARCHAR(255) NOT NULL,
				id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				document JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (tenant_id, id)
			);

			CREATE TABLE flow_triggers (
				position BIGSERIAL,
				tenant_id VARCHAR(255) NOT NULL,
				id VARCHAR(255) NOT NULL,
				channel_id VARCHAR(255) NOT NULL DEFAULT '',
				name VARCHAR(255) NOT NULL DEFAULT '',
				phrase TEXT NOT NULL,
				flow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
				PRIMARY KEY (tenant_id, id)
			);

			CREATE INDEX idx_flow_triggers_tenant_position ON flow_triggers(tenant_id, position);

			CREATE TABLE flow_defaults (
				tenant_id VARCHAR(255) NOT NULL,
				channel_id VARCHAR(255) NOT NULL DEFAULT '',
				welcome_flow_id VARCHAR(255) NOT NULL DEFAULT '',
				no_phrase_flow_id VARCHAR(255) NOT NULL DEFAULT '',
				PRIMARY KEY (tenant_id, channel_id)
			);
		`,
		2: `
			CREATE TABLE execution_contexts (
				tenant_id VARCHAR(255) NOT NULL,
				conversation_id VARCHAR(255) NOT NULL,
				flow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				cancelled BOOLEAN NOT NULL DEFAULT false,
				resume_at TIMESTAMP WITH TIME ZONE,
				document JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (tenant_id, conversation_id)
			);

			CREATE INDEX idx_execution_contexts_due ON execution_contexts(resume_at)
				WHERE status = 'waiting' AND NOT cancelled;
		`,
	}
}
