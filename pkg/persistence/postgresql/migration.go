package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE workflow_nodes (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				ordinal INT NOT NULL,
				kind VARCHAR(50) NOT NULL,
				name VARCHAR(255) NOT NULL,
				position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
				position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
				payload JSONB NOT NULL DEFAULT '{}',
				status VARCHAR(50) NOT NULL DEFAULT 'idle',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE TABLE workflow_edges (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				ordinal INT NOT NULL,
				source_node_id VARCHAR(255) NOT NULL,
				target_node_id VARCHAR(255) NOT NULL,
				kind VARCHAR(50) NOT NULL,
				label VARCHAR(255) NOT NULL DEFAULT '',
				connector JSONB,
				animated BOOLEAN NOT NULL DEFAULT false,
				status VARCHAR(50) NOT NULL DEFAULT 'idle',
				PRIMARY KEY (workflow_id, id)
			);
		`,
		2: `
			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE,
				failed_node_id VARCHAR(255),
				cancelled BOOLEAN NOT NULL DEFAULT false,
				record JSONB NOT NULL
			);

			CREATE INDEX idx_executions_workflow_started ON executions(workflow_id, started_at);
			CREATE INDEX idx_executions_status ON executions(status);
		`,
	}
}
