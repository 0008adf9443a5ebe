package database

// Program queries
const (
	programColumns = `
		id, name, direct_email_identifier, direct_phone_identifier, end_date,
		program_fallback_id, team_id, property_id, timezone,
		forwarding_enabled, forward_email_target, forward_sms_target, forward_call_target`

	SelectProgramByIDQuery    = `SELECT ` + programColumns + ` FROM programs WHERE id = ?`
	SelectProgramByPhoneQuery = `SELECT ` + programColumns + ` FROM programs WHERE direct_phone_identifier = ?`
	SelectProgramByEmailQuery = `SELECT ` + programColumns + ` FROM programs WHERE direct_email_identifier = ?`

	UpsertProgramQuery = `
		INSERT INTO programs (` + programColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			direct_email_identifier = excluded.direct_email_identifier,
			direct_phone_identifier = excluded.direct_phone_identifier,
			end_date = excluded.end_date,
			program_fallback_id = excluded.program_fallback_id,
			team_id = excluded.team_id,
			property_id = excluded.property_id,
			timezone = excluded.timezone,
			forwarding_enabled = excluded.forwarding_enabled,
			forward_email_target = excluded.forward_email_target,
			forward_sms_target = excluded.forward_sms_target,
			forward_call_target = excluded.forward_call_target
	`
)

// Team and agent queries
const (
	teamColumns = `
		id, name, module, call_routing_strategy, party_routing_strategy,
		last_assigned_user, call_center_phone_number, dispatcher_user_id,
		timezone, office_hours_start, office_hours_end, version`

	SelectTeamByIDQuery = `SELECT ` + teamColumns + ` FROM teams WHERE id = ?`

	UpsertTeamQuery = `
		INSERT INTO teams (` + teamColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			module = excluded.module,
			call_routing_strategy = excluded.call_routing_strategy,
			party_routing_strategy = excluded.party_routing_strategy,
			call_center_phone_number = excluded.call_center_phone_number,
			dispatcher_user_id = excluded.dispatcher_user_id,
			timezone = excluded.timezone,
			office_hours_start = excluded.office_hours_start,
			office_hours_end = excluded.office_hours_end,
			version = teams.version + 1
	`

	UpdateTeamRotationQuery = `
		UPDATE teams
		SET last_assigned_user = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	agentColumns = `
		u.id, u.full_name, tm.team_id, u.active, tm.inactive, u.status, u.endpoints, tm.has_la_role`

	SelectTeamAgentsQuery = `
		SELECT ` + agentColumns + `
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = ?
	`

	SelectAgentQuery = `
		SELECT ` + agentColumns + `
		FROM users u
		LEFT JOIN team_members tm ON tm.user_id = u.id
		WHERE u.id = ?
		ORDER BY tm.inactive ASC
		LIMIT 1
	`

	UpdateAgentStatusQuery = `UPDATE users SET status = ? WHERE id = ?`

	UpsertUserQuery = `
		INSERT INTO users (id, full_name, active, status, endpoints)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			active = excluded.active,
			status = excluded.status,
			endpoints = excluded.endpoints
	`

	teamMemberColumns = `id, team_id, user_id, direct_email_identifier, direct_phone_identifier, inactive`

	SelectTeamMemberByPhoneQuery = `SELECT ` + teamMemberColumns + ` FROM team_members WHERE direct_phone_identifier = ?`
	SelectTeamMemberByEmailQuery = `SELECT ` + teamMemberColumns + ` FROM team_members WHERE direct_email_identifier = ?`

	UpsertTeamMemberQuery = `
		INSERT INTO team_members (id, team_id, user_id, direct_email_identifier, direct_phone_identifier, inactive, has_la_role)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			direct_email_identifier = excluded.direct_email_identifier,
			direct_phone_identifier = excluded.direct_phone_identifier,
			inactive = excluded.inactive,
			has_la_role = excluded.has_la_role
	`
)

// Address book queries
const (
	SelectOutsideDedicatedTargetQuery = `SELECT target_identifier FROM outside_dedicated_emails WHERE email = ?`
	UpsertOutsideDedicatedQuery       = `
		INSERT INTO outside_dedicated_emails (email, target_identifier) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET target_identifier = excluded.target_identifier
	`

	SelectRelayAliasPersonQuery = `SELECT person_id FROM relay_aliases WHERE alias = ?`
	UpsertRelayAliasQuery       = `
		INSERT INTO relay_aliases (alias, person_id) VALUES (?, ?)
		ON CONFLICT(alias) DO UPDATE SET person_id = excluded.person_id
	`

	SelectPersonIDsByContactQuery = `SELECT DISTINCT person_id FROM contact_infos WHERE value = ? ORDER BY person_id`

	UpsertPersonQuery = `
		INSERT INTO persons (id, full_name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET full_name = excluded.full_name
	`
	InsertContactInfoQuery = `INSERT OR IGNORE INTO contact_infos (person_id, type, value) VALUES (?, ?, ?)`
)

// Party queries
const (
	partyColumns = `
		p.id, p.workflow_state, p.state, p.end_date, p.archive_date, p.owner_team_id,
		p.user_id, p.assigned_property_id, p.party_group_id, p.created_at, p.updated_at`

	SelectPartyByIDQuery    = `SELECT ` + partyColumns + ` FROM parties p WHERE p.id = ?`
	SelectPartyByEmailQuery = `SELECT ` + partyColumns + ` FROM parties p WHERE p.email_identifier = ?`

	SelectPartiesByThreadQuery = `
		SELECT DISTINCT ` + partyColumns + `
		FROM parties p
		JOIN communication_parties cp ON cp.party_id = p.id
		JOIN communications c ON c.id = cp.communication_id
		WHERE c.thread_id = ?
	`

	SelectActivePartyInGroupQuery = `
		SELECT ` + partyColumns + `
		FROM parties p
		WHERE p.party_group_id = ? AND p.workflow_state = 'ACTIVE'
		ORDER BY p.updated_at DESC
		LIMIT 1
	`

	SelectPartyMembersQuery = `SELECT person_id FROM party_members WHERE party_id = ? ORDER BY person_id`
	SelectPartyTeamsQuery   = `SELECT team_id FROM party_teams WHERE party_id = ? ORDER BY team_id`

	AssignPartyOwnerQuery = `
		UPDATE parties
		SET user_id = ?, updated_at = ?
		WHERE id = ? AND (user_id IS NULL OR user_id = '')
	`

	UpsertPartyQuery = `
		INSERT INTO parties (
			id, workflow_state, state, end_date, archive_date, owner_team_id, user_id,
			assigned_property_id, party_group_id, email_identifier, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workflow_state = excluded.workflow_state,
			state = excluded.state,
			end_date = excluded.end_date,
			archive_date = excluded.archive_date,
			owner_team_id = excluded.owner_team_id,
			user_id = excluded.user_id,
			assigned_property_id = excluded.assigned_property_id,
			party_group_id = excluded.party_group_id,
			email_identifier = excluded.email_identifier,
			updated_at = excluded.updated_at
	`
	InsertPartyMemberQuery = `INSERT OR IGNORE INTO party_members (party_id, person_id) VALUES (?, ?)`
	InsertPartyTeamQuery   = `INSERT OR IGNORE INTO party_teams (party_id, team_id) VALUES (?, ?)`
)

// Communication queries
const (
	communicationColumns = `
		id, message_id, thread_id, channel, direction, user_id, program_id,
		sender, message, category, target_type, target_id, created_at`

	InsertCommunicationQuery = `
		INSERT INTO communications (` + communicationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	InsertCommunicationPartyQuery  = `INSERT OR IGNORE INTO communication_parties (communication_id, party_id) VALUES (?, ?)`
	InsertCommunicationPersonQuery = `INSERT OR IGNORE INTO communication_persons (communication_id, person_id) VALUES (?, ?)`
	InsertCommunicationTeamQuery   = `INSERT OR IGNORE INTO communication_teams (communication_id, team_id) VALUES (?, ?)`

	SelectCommunicationByIDQuery        = `SELECT ` + communicationColumns + ` FROM communications WHERE id = ?`
	SelectCommunicationByMessageIDQuery = `
		SELECT ` + communicationColumns + `
		FROM communications
		WHERE message_id = ?
		ORDER BY created_at ASC
		LIMIT 1
	`
	CountCommunicationsByMessageIDQuery = `SELECT COUNT(*) FROM communications WHERE message_id = ?`

	SelectCommunicationPartiesQuery = `SELECT party_id FROM communication_parties WHERE communication_id = ? ORDER BY party_id`
	SelectCommunicationPersonsQuery = `SELECT person_id FROM communication_persons WHERE communication_id = ? ORDER BY person_id`
	SelectCommunicationTeamsQuery   = `SELECT team_id FROM communication_teams WHERE communication_id = ? ORDER BY team_id`

	UpdateCallStatusQuery = `UPDATE communications SET call_status = ? WHERE id = ?`

	InsertForwardedCommunicationQuery = `
		INSERT INTO forwarded_communications (
			id, type, message_id, program_id, program_contact_data, message,
			forwarded_to, received_from, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	SelectForwardedCommunicationQuery = `
		SELECT id, type, message_id, program_id, program_contact_data, message,
			forwarded_to, received_from, status, created_at
		FROM forwarded_communications
		WHERE message_id = ? AND forwarded_to = ?
	`
	UpdateForwardedStatusQuery        = `UPDATE forwarded_communications SET status = ? WHERE id = ?`
	CountForwardedCommunicationsQuery = `SELECT COUNT(*) FROM forwarded_communications WHERE program_id = ?`

	SelectRelayMessageQuery = `
		SELECT message_id, forward_message_id, thread_id, sender_person_id, recipient_person_id
		FROM relay_messages
		WHERE message_id = ? OR forward_message_id = ?
		LIMIT 1
	`
	InsertRelayMessageQuery = `
		INSERT OR REPLACE INTO relay_messages (message_id, forward_message_id, thread_id, sender_person_id, recipient_person_id)
		VALUES (?, ?, ?, ?, ?)
	`
)

// Duplicate window queries
const (
	ClaimMessageQuery = `
		INSERT INTO processed_messages (message_id, seen_at) VALUES (?, ?)
		ON CONFLICT(message_id) DO UPDATE SET seen_at = excluded.seen_at
		WHERE processed_messages.seen_at < ?
	`
	ReleaseMessageQuery = `DELETE FROM processed_messages WHERE message_id = ?`
	PurgeProcessedQuery = `DELETE FROM processed_messages WHERE seen_at < ?`
)
